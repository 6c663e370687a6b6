// internal/api/handlers/code_handler.go
package handlers

import (
	"net/http"
	"time"

	"safe-pickup-api-server/internal/api/middleware"
	"safe-pickup-api-server/internal/auth"
	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/service"

	"github.com/gin-gonic/gin"
)

type CodeHandler struct {
	Codes *service.CodeService
}

type GenerateCodeRequest struct {
	SchoolID  string    `json:"schoolId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyCodeRequest struct {
	Code      string `json:"code" binding:"required"`
	ParentID  string `json:"parentId"`
	StudentID string `json:"studentId"`
	DriverID  string `json:"driverId"`
}

// GenerateCode tạo mã QR mới cho trường của người gọi.
func (h *CodeHandler) GenerateCode(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	var req GenerateCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	if req.SchoolID == "" {
		req.SchoolID = id.SchoolID
	}

	code, err := h.Codes.Generate(c.Request.Context(), service.GenerateCodeParams{
		SchoolID:  req.SchoolID,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, code)
}

// VerifyCode xác minh mã do phụ huynh hoặc tài xế trình ra.
func (h *CodeHandler) VerifyCode(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)

	var req VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	actor := service.VerifyActor{ParentID: req.ParentID, StudentID: req.StudentID, DriverID: req.DriverID}
	if err := actor.Validate(); err != nil {
		respondError(c, err)
		return
	}

	// Phụ huynh và tài xế chỉ được quét cho chính mình.
	switch id.Role {
	case auth.RoleParent:
		if actor.ParentID != id.UserID {
			respondForbidden(c, "Parents can only verify codes for themselves")
			return
		}
	case auth.RoleDriver:
		if actor.DriverID != id.UserID {
			respondForbidden(c, "Drivers can only verify codes for themselves")
			return
		}
	}

	result, err := h.Codes.Verify(c.Request.Context(), req.Code, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "result": result})
}

func (h *CodeHandler) DeactivateCode(c *gin.Context) {
	code := c.Param("code")
	if err := h.Codes.Deactivate(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Code deactivated", "code": code})
}

func (h *CodeHandler) DeleteCode(c *gin.Context) {
	code := c.Param("code")
	if err := h.Codes.Delete(c.Request.Context(), code); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Code deleted", "code": code})
}

func (h *CodeHandler) GetCode(c *gin.Context) {
	code, err := h.Codes.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, code)
}

// ListActiveCodes trả về các mã còn hiệu lực, lọc theo ?schoolId= hoặc trường trong token.
// Màn hình sảnh chỉ nhận mã và hạn dùng; danh sách scan chỉ dành cho nhân viên.
func (h *CodeHandler) ListActiveCodes(c *gin.Context) {
	id, _ := middleware.CurrentIdentity(c)
	schoolID := c.Query("schoolId")
	if schoolID == "" {
		schoolID = id.SchoolID
	}
	codes, err := h.Codes.ListActive(c.Request.Context(), schoolID)
	if err != nil {
		respondError(c, err)
		return
	}
	if id.Role == auth.RoleDisplay {
		shown := make([]models.QRCodeDisplay, 0, len(codes))
		for _, q := range codes {
			shown = append(shown, q.Display())
		}
		c.JSON(http.StatusOK, shown)
		return
	}
	c.JSON(http.StatusOK, codes)
}
