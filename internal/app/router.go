// internal/app/router.go
package app

import (
	couponHandler "coupon-service/internal/handlers/coupon"
	"coupon-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	CouponHandler  *couponHandler.CouponHandler
	AuthMiddleware *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Public Coupon Routes ====================
	// Validation is a non-binding pre-check, safe to expose without auth.
	api.POST("/coupons/validate", h.CouponHandler.ValidateCoupon)

	// ==================== Authenticated Coupon Routes ====================
	coupons := api.Group("/coupons")
	coupons.Use(h.AuthMiddleware.Auth())
	{
		coupons.POST("/apply", h.CouponHandler.ApplyCoupon)
		coupons.GET("/code/:code", h.CouponHandler.GetCouponByCode)

		coupons.POST("/:id/claim", h.CouponHandler.ClaimCoupon)
		coupons.GET("/claimed", h.CouponHandler.GetClaimedCoupons)
		coupons.DELETE("/claimed", h.CouponHandler.UnclaimCoupons)
		coupons.GET("/redemptions", h.CouponHandler.GetRedemptionHistory)
	}

	// ==================== Admin Routes ====================
	admin := api.Group("/admin/coupons")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.POST("", h.CouponHandler.CreateCoupon)
		admin.GET("", h.CouponHandler.ListCoupons)
		admin.GET("/:id", h.CouponHandler.GetCoupon)
		admin.PUT("/:id", h.CouponHandler.UpdateCoupon)
		admin.DELETE("/:id", h.CouponHandler.DeleteCoupon)

		admin.PUT("/:id/activate", h.CouponHandler.ActivateCoupon)
		admin.PUT("/:id/deactivate", h.CouponHandler.DeactivateCoupon)
	}
}
