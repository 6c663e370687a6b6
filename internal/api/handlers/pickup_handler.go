// internal/api/handlers/pickup_handler.go
package handlers

import (
	"net/http"

	"safe-pickup-api-server/internal/api/middleware"
	"safe-pickup-api-server/internal/auth"
	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

type PickupHandler struct {
	Pickups *service.PickupService
}

type CreatePickupRequest struct {
	PickupCode string                 `json:"pickupCode"`
	StudentIDs []string               `json:"studentIds"`
	Students   []models.StudentInfo   `json:"students" binding:"omitempty,dive"`
	Parent     *models.ParentSnapshot `json:"parent"`
	DriverID   string                 `json:"driverId"`
}

type TransitionPickupRequest struct {
	Status    models.PickupStatus   `json:"status" binding:"required,pickupstatus"`
	UpdatedBy *models.ActorSnapshot `json:"updatedBy"`
	Notes     string                `json:"notes"`
}

// CreatePickup tạo yêu cầu đón mới. Người tạo được suy ra từ token.
func (h *PickupHandler) CreatePickup(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	var req CreatePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	params := service.CreatePickupParams{
		PickupCode: req.PickupCode,
		StudentIDs: req.StudentIDs,
		Students:   req.Students,
		Parent:     req.Parent,
		DriverID:   req.DriverID,
	}
	switch id.Role {
	case auth.RoleParent:
		// Phụ huynh luôn tạo cho chính mình.
		params.DriverID = ""
		params.Parent = &models.ParentSnapshot{ID: id.UserID, Name: id.Name, Email: id.Email}
	case auth.RoleDriver:
		params.DriverID = id.UserID
		params.Parent = nil
	default:
		if params.DriverID == "" {
			actor := actorFromIdentity(id)
			params.InitiatedBy = &actor
		}
	}

	pickup, err := h.Pickups.Create(c.Request.Context(), params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, pickup)
}

// TransitionPickup hoàn tất hoặc hủy một pickup đang chờ.
func (h *PickupHandler) TransitionPickup(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	var req TransitionPickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	// Người thao tác luôn lấy từ token. Body chỉ bổ sung tên hiển thị cho nhân viên
	// khi token không mang tên.
	updatedBy := actorFromIdentity(id)
	if req.UpdatedBy != nil && updatedBy.Name == "" && (id.Role == auth.RoleStaff || id.Role == auth.RoleAdmin) {
		updatedBy.Name = req.UpdatedBy.Name
	}

	pickup, err := h.Pickups.Transition(c.Request.Context(), service.TransitionParams{
		PickupID:  c.Param("id"),
		Status:    req.Status,
		UpdatedBy: updatedBy,
		Notes:     req.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickup)
}

func (h *PickupHandler) GetPickup(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	pickup, err := h.Pickups.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if id.Role == auth.RoleParent && pickup.Parent.ID != id.UserID {
		respondForbidden(c, "You do not have permission to access this pickup")
		return
	}
	c.JSON(http.StatusOK, pickup)
}

// ListMyPickups lấy các pickup của phụ huynh hiện tại, mới nhất trước.
func (h *PickupHandler) ListMyPickups(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)
	pickups, err := h.Pickups.ListByParent(c.Request.Context(), id.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickups)
}

// ListPickups lấy danh sách cho nhân viên, có thể lọc theo ?status=.
func (h *PickupHandler) ListPickups(c *gin.Context) {
	pickups, err := h.Pickups.List(c.Request.Context(), models.PickupStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pickups)
}

func (h *PickupHandler) GetStats(c *gin.Context) {
	stats, err := h.Pickups.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *PickupHandler) DeletePickup(c *gin.Context) {
	pickupID := c.Param("id")
	if err := h.Pickups.Delete(c.Request.Context(), pickupID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Pickup deleted", "pickupId": pickupID})
}

func (h *PickupHandler) DeleteAllPickups(c *gin.Context) {
	result, err := h.Pickups.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "deletedCount": result.Count, "archive": result.Archive})
}
