package handler

import "github.com/gin-gonic/gin"

// RegisterWizardRoutes mounts the wizard and guardian lookup endpoints on rg.
// lookup middleware runs only on the guardian lookup.
func RegisterWizardRoutes(rg *gin.RouterGroup, h *WizardHandler, lookup ...gin.HandlerFunc) {
	wizards := rg.Group("/enrollment-wizards")
	wizards.POST("", h.Start)
	wizards.GET("/:id", h.Get)
	wizards.DELETE("/:id", h.Cancel)
	wizards.PATCH("/:id/fields", h.ApplyChanges)

	wizards.POST("/:id/guardians", h.AddGuardian)
	wizards.PUT("/:id/guardians/:index", h.UpdateGuardian)
	wizards.DELETE("/:id/guardians/:index", h.RemoveGuardian)
	wizards.POST("/:id/medications", h.AddMedication)
	wizards.DELETE("/:id/medications/:index", h.RemoveMedication)
	wizards.POST("/:id/emergency-contacts", h.AddEmergencyContact)
	wizards.DELETE("/:id/emergency-contacts/:index", h.RemoveEmergencyContact)

	wizards.PUT("/:id/scholarship", h.SelectScholarship)
	wizards.DELETE("/:id/scholarship", h.ClearScholarship)
	wizards.POST("/:id/discounts", h.AddDiscount)
	wizards.DELETE("/:id/discounts/:index", h.RemoveDiscount)

	wizards.POST("/:id/next", h.Next)
	wizards.POST("/:id/previous", h.Previous)
	wizards.POST("/:id/jump", h.Jump)
	wizards.GET("/:id/options", h.Options)
	wizards.GET("/:id/review.pdf", h.ReviewPDF)
	wizards.GET("/:id/review.csv", h.ReviewCSV)
	wizards.POST("/:id/submit", h.Submit)

	rg.GET("/people/guardians", append(lookup, h.LookupGuardian)...)
}
