package repairs_api

import (
	"time"

	"github.com/BearBump/RepairBox/internal/models"
	"github.com/BearBump/RepairBox/internal/services/lifecycle"
)

type intakeRequest struct {
	Customer struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
		Email string `json:"email"`
	} `json:"customer"`
	Vehicle struct {
		Plate string `json:"plate"`
		Brand string `json:"brand"`
		Model string `json:"model"`
		Year  *int   `json:"year"`
		Color string `json:"color"`
	} `json:"vehicle"`
	Kind             string     `json:"kind"`
	Description      string     `json:"description"`
	InsuranceCompany string     `json:"insuranceCompany"`
	PolicyNumber     string     `json:"policyNumber"`
	PreferredDate    *time.Time `json:"preferredDate"`
	Note             string     `json:"note"`
}

func (r intakeRequest) toInput(actor string) lifecycle.IntakeInput {
	return lifecycle.IntakeInput{
		CustomerName:     r.Customer.Name,
		CustomerPhone:    r.Customer.Phone,
		CustomerEmail:    r.Customer.Email,
		Plate:            r.Vehicle.Plate,
		Brand:            r.Vehicle.Brand,
		Model:            r.Vehicle.Model,
		Year:             r.Vehicle.Year,
		Color:            r.Vehicle.Color,
		Kind:             r.Kind,
		Description:      r.Description,
		InsuranceCompany: r.InsuranceCompany,
		PolicyNumber:     r.PolicyNumber,
		PreferredDate:    r.PreferredDate,
		Note:             r.Note,
		Actor:            actor,
	}
}

type intakeResponse struct {
	ID           string `json:"id"`
	TrackingCode string `json:"trackingCode"`
}

type transitionRequest struct {
	Status               string     `json:"status"`
	Note                 string     `json:"note"`
	ExpectedStatus       string     `json:"expectedStatus"`
	ExpectedCompletionAt *time.Time `json:"expectedCompletionAt"`
}

type correctionRequest struct {
	Status         string `json:"status"`
	Note           string `json:"note"`
	ExpectedStatus string `json:"expectedStatus"`
}

type listResponse struct {
	Items []*models.RepairListItem `json:"items"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Field   string         `json:"field,omitempty"`
	Repair  *models.Repair `json:"repair,omitempty"`
}
