package server

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wolfeidau/pcfhub/internal/models"
)

type taskView struct {
	ID             uuid.UUID            `json:"id"`
	Type           models.TaskType      `json:"type"`
	Direction      models.TaskDirection `json:"direction"`
	Status         models.TaskStatus    `json:"status"`
	ClientOrgID    uuid.UUID            `json:"clientOrgId"`
	RecipientOrgID uuid.UUID            `json:"recipientOrgId"`
	Message        string               `json:"message,omitempty"`
	EventID        string               `json:"eventId,omitempty"`
	Source         string               `json:"source,omitempty"`
	Payload        json.RawMessage      `json:"payload,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func newTaskView(t *models.Task) taskView {
	return taskView{
		ID:             t.TaskID,
		Type:           t.Type,
		Direction:      t.Direction,
		Status:         t.Status,
		ClientOrgID:    t.ClientOrgID,
		RecipientOrgID: t.RecipientOrgID,
		Message:        t.Message,
		EventID:        t.EventID,
		Source:         t.Source,
		Payload:        t.Payload,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

type taskList struct {
	Data []taskView `json:"data"`
}

// dataSourceView never carries the stored password.
type dataSourceView struct {
	ID        uuid.UUID             `json:"id"`
	OrgID     uuid.UUID             `json:"orgId"`
	Type      models.DataSourceType `json:"type"`
	Name      string                `json:"name"`
	Username  string                `json:"username"`
	Endpoints []endpointView        `json:"endpoints"`
	CreatedAt time.Time             `json:"createdAt"`
}

type endpointView struct {
	Type models.EndpointType `json:"type"`
	URL  string              `json:"url"`
}

func newDataSourceView(ds *models.DataSource) dataSourceView {
	v := dataSourceView{
		ID:        ds.DataSourceID,
		OrgID:     ds.OrgID,
		Type:      ds.Type,
		Name:      ds.Name,
		Username:  ds.Username,
		Endpoints: make([]endpointView, 0, len(ds.Endpoints)),
		CreatedAt: ds.CreatedAt,
	}
	for _, e := range ds.Endpoints {
		v.Endpoints = append(v.Endpoints, endpointView{Type: e.Type, URL: e.URL})
	}
	return v
}

type savedFootprint struct {
	ID      uuid.UUID `json:"id"`
	Version int       `json:"version"`
	Outcome string    `json:"outcome"`
}

// issuedClient is shown once; only the secret hash is stored.
type issuedClient struct {
	ClientID     string    `json:"clientId"`
	ClientSecret string    `json:"clientSecret"`
	OrgID        uuid.UUID `json:"orgId"`
}
