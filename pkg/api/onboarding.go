package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taxidocs/pkg/models"
)

type driverInfoRequest struct {
	FullName      string  `json:"full_name"`
	DateOfBirth   *string `json:"date_of_birth"`
	LicenseNumber string  `json:"license_number"`
	Address       string  `json:"address"`
}

type batchRequest struct {
	Documents []uploadRequest `json:"documents"`
}

type vehicleRequest struct {
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Year         int             `json:"year"`
	Color        string          `json:"color"`
	LicensePlate string          `json:"license_plate"`
	Documents    []uploadRequest `json:"documents"`
}

type bankRequest struct {
	AccountHolder string          `json:"account_holder"`
	AccountNumber string          `json:"account_number"`
	IFSC          string          `json:"ifsc"`
	BankName      string          `json:"bank_name"`
	Documents     []uploadRequest `json:"documents"`
}

func (h *Handler) getStage(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	sess, err := h.svc.Onboarding().GetStage(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) submitDriverInfo(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req driverInfoRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	dob, err := parseDate(req.DateOfBirth)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sess, err := h.svc.Onboarding().SubmitDriverInfo(c.Request.Context(), actorFrom(c), id, models.DriverProfile{
		FullName:      req.FullName,
		DateOfBirth:   dob,
		LicenseNumber: req.LicenseNumber,
		Address:       req.Address,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *Handler) submitDriverDocuments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req batchRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	uploads := toUploads(req.Documents)
	res, err := h.svc.Onboarding().SubmitDriverDocuments(c.Request.Context(), actorFrom(c), id, uploads)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) submitVehicleInfo(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req vehicleRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	uploads := toUploads(req.Documents)
	res, err := h.svc.Onboarding().SubmitVehicleInfo(c.Request.Context(), actorFrom(c), id, models.VehicleProfile{
		Brand:        req.Brand,
		Model:        req.Model,
		Year:         req.Year,
		Color:        req.Color,
		LicensePlate: req.LicensePlate,
	}, uploads)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) submitBankDocuments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req bankRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	uploads := toUploads(req.Documents)
	res, err := h.svc.Onboarding().SubmitBankDocuments(c.Request.Context(), actorFrom(c), id, models.BankProfile{
		AccountHolder: req.AccountHolder,
		AccountNumber: req.AccountNumber,
		IFSC:          req.IFSC,
		BankName:      req.BankName,
	}, uploads)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) advanceStage(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	sess, err := h.svc.Onboarding().AdvanceStage(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}
