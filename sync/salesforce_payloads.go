// ABOUTME: Wire schemas for the Salesforce REST API
// ABOUTME: Field projection from FormRecord plus create-response and error bodies
package sync

import (
	"encoding/json"
	"strings"

	"github.com/harperreed/scanpush/models"
)

// APIVersion is the REST API version in the sobjects path.
const APIVersion = "v60.0"

// RecordPayload is the fixed projection of a FormRecord onto CRM fields.
// All four fields are always sent, empty or not.
type RecordPayload struct {
	Name         string `json:"Name"`
	EmailAddress string `json:"Email_Address__c"`
	Phone        string `json:"Phone__c"`
	Type         string `json:"Type__c"`
}

// NewRecordPayload maps rec onto the CRM field names.
func NewRecordPayload(rec *models.FormRecord) RecordPayload {
	return RecordPayload{
		Name:         rec.Name,
		EmailAddress: rec.Email,
		Phone:        rec.Phone,
		Type:         rec.AccountType,
	}
}

// CreateResponse is the 201 body of an sobject create.
type CreateResponse struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Errors  []APIError `json:"errors"`
}

// APIError is one entry of a Salesforce error array.
type APIError struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

// parseAPIErrors reads a Salesforce error array. Bodies in any other
// shape yield nil; callers keep the raw body regardless.
func parseAPIErrors(body []byte) []APIError {
	var apiErrors []APIError
	if err := json.Unmarshal(body, &apiErrors); err != nil {
		return nil
	}
	return apiErrors
}

func summarizeAPIErrors(apiErrors []APIError) string {
	parts := make([]string, 0, len(apiErrors))
	for _, e := range apiErrors {
		if e.ErrorCode != "" {
			parts = append(parts, e.ErrorCode+": "+e.Message)
		} else {
			parts = append(parts, e.Message)
		}
	}
	return strings.Join(parts, "; ")
}
