package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"taxidocs/pkg/errs"
	"taxidocs/pkg/expiry"
	"taxidocs/pkg/models"
)

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, c.Param(name), errs.ErrValidation)
	}
	return id, nil
}

// bindJSON decodes the request body into dst. An empty body leaves dst at
// its zero value.
func bindJSON(c *gin.Context, dst interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("request body: %v: %w", err, errs.ErrValidation)
	}
	return nil
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	return expiry.ParseDate(*s)
}

// uploadRequest is the wire form of models.DocumentUpload.
type uploadRequest struct {
	DocType        string            `json:"doc_type"`
	FileLabel      string            `json:"file_label"`
	DocumentNumber *string           `json:"document_number"`
	FileRef        string            `json:"file_ref"`
	ExpiryDate     *string           `json:"expiry_date"`
	Metadata       map[string]string `json:"metadata"`
}

func (u uploadRequest) toModel() (models.DocumentUpload, error) {
	exp, err := parseDate(u.ExpiryDate)
	if err != nil {
		return models.DocumentUpload{}, err
	}
	return models.DocumentUpload{
		DocType:        u.DocType,
		FileLabel:      u.FileLabel,
		DocumentNumber: u.DocumentNumber,
		FileRef:        u.FileRef,
		ExpiryDate:     exp,
		Metadata:       u.Metadata,
	}, nil
}

// toUploads converts batch items. An item whose fields do not parse is
// carried with Invalid set so the batch reports it next to its siblings.
func toUploads(in []uploadRequest) []models.DocumentUpload {
	out := make([]models.DocumentUpload, 0, len(in))
	for i, u := range in {
		m, err := u.toModel()
		if err != nil {
			m = models.DocumentUpload{
				DocType:   u.DocType,
				FileLabel: u.FileLabel,
				Invalid:   fmt.Errorf("document %d: %w", i, err),
			}
		}
		out = append(out, m)
	}
	return out
}
