package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"taxidocs/pkg/expiry"
	"taxidocs/pkg/models"
	"taxidocs/service"
)

type submitRequest struct {
	DriverID int64           `json:"driver_id"`
	Category models.Category `json:"category"`
	uploadRequest
}

type resubmitRequest struct {
	FileRef         *string           `json:"file_ref"`
	DocumentNumber  *string           `json:"document_number"`
	ExpiryDate      *string           `json:"expiry_date"`
	Metadata        map[string]string `json:"metadata"`
	ExpectedVersion int               `json:"expected_version"`
}

type versionRequest struct {
	ExpectedVersion int `json:"expected_version"`
}

type rejectRequest struct {
	Reason          string `json:"reason"`
	ExpectedVersion int    `json:"expected_version"`
}

func (h *Handler) submitDocument(c *gin.Context) {
	var req submitRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	up, err := req.toModel()
	if err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Document().Submit(c.Request.Context(), actorFrom(c), service.SubmitInput{
		DriverID:       req.DriverID,
		Category:       req.Category,
		DocType:        up.DocType,
		FileLabel:      up.FileLabel,
		DocumentNumber: up.DocumentNumber,
		FileRef:        up.FileRef,
		ExpiryDate:     up.ExpiryDate,
		Metadata:       up.Metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) getDocument(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Document().Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) listDocuments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var filter service.ListFilter
	if cat := c.Query("category"); cat != "" {
		category := models.Category(cat)
		filter.Category = &category
	}
	filter.IncludeArchived, _ = strconv.ParseBool(c.Query("include_archived"))

	docs, err := h.svc.Document().ListByDriver(c.Request.Context(), actorFrom(c), id, filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) resubmitDocument(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req resubmitRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	exp, err := parseDate(req.ExpiryDate)
	if err != nil {
		h.writeError(c, err)
		return
	}
	idx, err := h.svc.Document().Resubmit(c.Request.Context(), actorFrom(c), id, service.ResubmitInput{
		FileRef:         req.FileRef,
		DocumentNumber:  req.DocumentNumber,
		ExpiryDate:      exp,
		Metadata:        req.Metadata,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version_index": idx})
}

func (h *Handler) approveDocument(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req versionRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Verification().Approve(c.Request.Context(), actorFrom(c), id, req.ExpectedVersion)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) rejectDocument(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req rejectRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Verification().Reject(c.Request.Context(), actorFrom(c), id, req.Reason, req.ExpectedVersion)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) archiveDocument(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req versionRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Document().Archive(c.Request.Context(), actorFrom(c), id, req.ExpectedVersion)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) listVersions(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	versions, err := h.svc.Ledger().Versions(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, versions)
}

func (h *Handler) documentAsOf(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	index, err := pathID(c, "index")
	if err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Ledger().AsOf(c.Request.Context(), actorFrom(c), id, int(index))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) fileURL(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	url, err := h.svc.Document().FileURL(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) presignUpload(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	var req struct {
		Category models.Category `json:"category"`
	}
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}
	ref, url, err := h.svc.Document().PresignUpload(c.Request.Context(), actorFrom(c), id, req.Category)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"file_ref": ref, "upload_url": url})
}

func (h *Handler) reminderAvailable(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	doc, err := h.svc.Document().Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	now := h.now()
	resp := gin.H{"available": expiry.ReminderAvailable(doc, now)}
	if doc.ExpiryDate != nil {
		resp["expiry_date"] = expiry.FormatDate(*doc.ExpiryDate)
		resp["days_left"] = expiry.DaysUntil(*doc.ExpiryDate, now)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) sendReminder(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.writeError(c, err)
		return
	}
	res, err := h.svc.Reminder().SendReminder(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	status := http.StatusAccepted
	if res == service.ReminderDuplicate {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"result": res})
}
