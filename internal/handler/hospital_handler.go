package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"medidesk-go/internal/model"
)

// HospitalHandler 返回挂件所需的医院资料（科室下拉、费用展示）。
type HospitalHandler struct {
	profile *model.HospitalProfile
}

// NewHospitalHandler 创建一个新的 HospitalHandler。
func NewHospitalHandler(profile *model.HospitalProfile) *HospitalHandler {
	return &HospitalHandler{profile: profile}
}

// GetProfile 返回医院资料。
func (h *HospitalHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": h.profile})
}
