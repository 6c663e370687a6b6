package handlers

import (
	"net/http"
	"sync"

	"safe-pickup-api-server/internal/auth"
	"safe-pickup-api-server/internal/models"
	"safe-pickup-api-server/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// respondError chuyển lỗi của service thành mã HTTP: validation 400, not found 404,
// conflict 409, còn lại 500 với thông báo chung.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	kind := service.ErrorKind(err)
	switch kind {
	case service.KindValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": kind})
	case service.KindNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "kind": kind})
	case service.KindConflict:
		c.JSON(http.StatusConflict, gin.H{"error": "This request was already handled by someone else: " + err.Error(), "kind": kind})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong, please try again", "kind": service.KindUnexpected})
	}
}

func respondBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": service.KindValidation})
}

func respondForbidden(c *gin.Context, msg string) {
	c.JSON(http.StatusForbidden, gin.H{"error": msg})
}

// actorFromIdentity dựng snapshot người thao tác từ token.
func actorFromIdentity(id auth.Identity) models.ActorSnapshot {
	actorType := models.ActorStaff
	switch id.Role {
	case auth.RoleParent:
		actorType = models.ActorParent
	case auth.RoleDriver:
		actorType = models.ActorDriver
	case auth.RoleAdmin:
		actorType = models.ActorAdmin
	}
	return models.ActorSnapshot{ID: id.UserID, Name: id.Name, Email: id.Email, Type: actorType}
}

func isStaff(role string) bool {
	return role == auth.RoleStaff || role == auth.RoleAdmin || role == auth.RoleDisplay
}

var registerOnce sync.Once

// RegisterValidators đăng ký các tag validate riêng với validator của gin.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("pickupstatus", func(fl validator.FieldLevel) bool {
			return models.PickupStatus(fl.Field().String()).Valid()
		})
	})
}
