// Package event defines the federation event envelope and the closed set of
// event variants exchanged between nodes.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/pcfhub/internal/apperr"
)

// SpecVersion is the only supported envelope version.
const SpecVersion = "1.0"

const typePrefix = "org.wbcsd.pathfinder."

// Event types.
const (
	TypePublished        = typePrefix + "ProductFootprint.Published.v1"
	TypeRequestCreated   = typePrefix + "ProductFootprintRequest.Created.v1"
	TypeRequestFulfilled = typePrefix + "ProductFootprintRequest.Fulfilled.v1"
	TypeRequestRejected  = typePrefix + "ProductFootprintRequest.Rejected.v1"
	TypeContractRequest  = typePrefix + "Contract.Request.v1"
	TypeContractReply    = typePrefix + "Contract.Reply.v1"
	TypeCompanyUpdated   = typePrefix + "Company.Updated.v1"
	TypeFootprintUpdated = typePrefix + "ProductFootprint.Updated.v1"
)

// Envelope is the wire form of every event.
type Envelope struct {
	Type        string          `json:"type"`
	SpecVersion string          `json:"specversion"`
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	Time        time.Time       `json:"time"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Event is one of the variants below. The set is closed; handlers switch on
// the concrete type.
type Event interface {
	Header() *Envelope
	eventType() string
}

// Published announces new or changed footprints by id.
type Published struct {
	Envelope `json:"-"`
	PfIDs    []string `json:"pfIds"`
}

// FootprintUpdated announces revised footprints by id.
type FootprintUpdated struct {
	Envelope `json:"-"`
	PfIDs    []string `json:"pfIds"`
}

// RequestCreated asks the recipient for footprints matching a partial
// footprint.
type RequestCreated struct {
	Envelope `json:"-"`
	PF       json.RawMessage `json:"pf"`
	Comment  string          `json:"comment,omitempty"`
}

// RequestFulfilled answers a RequestCreated with full footprints.
type RequestFulfilled struct {
	Envelope       `json:"-"`
	RequestEventID string            `json:"requestEventId"`
	PFs            []json.RawMessage `json:"pfs"`
}

// RequestRejected declines a RequestCreated or ContractRequest.
type RequestRejected struct {
	Envelope       `json:"-"`
	RequestEventID string               `json:"requestEventId"`
	Error          apperr.ProtocolError `json:"error"`
}

// Company describes the sending or receiving organization of a contract
// event.
type Company struct {
	Name string   `json:"companyName"`
	IDs  []string `json:"companyIds"`
}

// ContractRequest asks a counterpart, reached through the hub, for
// credentials.
type ContractRequest struct {
	Envelope  `json:"-"`
	Requester Company `json:"requester"`
	Recipient Company `json:"recipient"`
	Message   string  `json:"message,omitempty"`
	PublicKey string  `json:"publicKey"` // PEM
}

// ContractReply returns sealed credentials for a ContractRequest.
type ContractReply struct {
	Envelope       `json:"-"`
	RequestEventID string  `json:"requestEventId"`
	Replier        Company `json:"replier"`
	Recipient      Company `json:"recipient"`
	PublicKey      string  `json:"publicKey"` // PEM
	Bundle         string  `json:"bundle"`    // sealed for the recipient's key
}

// CompanyUpdated carries the sender's current name and identifiers.
type CompanyUpdated struct {
	Envelope `json:"-"`
	Company
}

// Ignored is any event of an unsupported type.
type Ignored struct {
	Envelope
}

func (e *Published) Header() *Envelope        { return &e.Envelope }
func (e *FootprintUpdated) Header() *Envelope { return &e.Envelope }
func (e *RequestCreated) Header() *Envelope   { return &e.Envelope }
func (e *RequestFulfilled) Header() *Envelope { return &e.Envelope }
func (e *RequestRejected) Header() *Envelope  { return &e.Envelope }
func (e *ContractRequest) Header() *Envelope  { return &e.Envelope }
func (e *ContractReply) Header() *Envelope    { return &e.Envelope }
func (e *CompanyUpdated) Header() *Envelope   { return &e.Envelope }
func (e *Ignored) Header() *Envelope          { return &e.Envelope }

func (*Published) eventType() string        { return TypePublished }
func (*FootprintUpdated) eventType() string { return TypeFootprintUpdated }
func (*RequestCreated) eventType() string   { return TypeRequestCreated }
func (*RequestFulfilled) eventType() string { return TypeRequestFulfilled }
func (*RequestRejected) eventType() string  { return TypeRequestRejected }
func (*ContractRequest) eventType() string  { return TypeContractRequest }
func (*ContractReply) eventType() string    { return TypeContractReply }
func (*CompanyUpdated) eventType() string   { return TypeCompanyUpdated }
func (e *Ignored) eventType() string        { return e.Type }

// Decode parses an envelope and its data into the matching variant.
// Unsupported types decode to *Ignored.
func Decode(raw []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, apperr.Request("malformed event envelope: %v", err)
	}
	if env.SpecVersion != SpecVersion {
		return nil, apperr.Request("unsupported specversion %q", env.SpecVersion)
	}
	if env.Type == "" || env.ID == "" {
		return nil, apperr.Request("event type and id are required")
	}

	var ev Event
	switch env.Type {
	case TypePublished:
		ev = &Published{Envelope: env}
	case TypeFootprintUpdated:
		ev = &FootprintUpdated{Envelope: env}
	case TypeRequestCreated:
		ev = &RequestCreated{Envelope: env}
	case TypeRequestFulfilled:
		ev = &RequestFulfilled{Envelope: env}
	case TypeRequestRejected:
		ev = &RequestRejected{Envelope: env}
	case TypeContractRequest:
		ev = &ContractRequest{Envelope: env}
	case TypeContractReply:
		ev = &ContractReply{Envelope: env}
	case TypeCompanyUpdated:
		ev = &CompanyUpdated{Envelope: env}
	default:
		return &Ignored{Envelope: env}, nil
	}

	if len(env.Data) == 0 {
		return nil, apperr.Request("event %s has no data", env.ID)
	}
	if err := json.Unmarshal(env.Data, ev); err != nil {
		return nil, apperr.Request("malformed %s data: %v", env.Type, err)
	}
	if err := validate(ev); err != nil {
		return nil, err
	}
	return ev, nil
}

func validate(ev Event) error {
	switch e := ev.(type) {
	case *Published:
		if len(e.PfIDs) == 0 {
			return apperr.Request("pfIds must not be empty")
		}
	case *FootprintUpdated:
		if len(e.PfIDs) == 0 {
			return apperr.Request("pfIds must not be empty")
		}
	case *RequestCreated:
		if len(e.PF) == 0 {
			return apperr.Request("pf is required")
		}
	case *RequestFulfilled:
		if e.RequestEventID == "" || len(e.PFs) == 0 {
			return apperr.Request("requestEventId and pfs are required")
		}
	case *RequestRejected:
		if e.RequestEventID == "" {
			return apperr.Request("requestEventId is required")
		}
	case *ContractRequest:
		if e.Requester.Name == "" || e.PublicKey == "" {
			return apperr.Request("requester companyName and publicKey are required")
		}
	case *ContractReply:
		if e.RequestEventID == "" || e.Bundle == "" {
			return apperr.Request("requestEventId and bundle are required")
		}
	case *CompanyUpdated:
		if e.Name == "" {
			return apperr.Request("companyName is required")
		}
	}
	return nil
}

// New stamps ev with a fresh id, the current time and source, and returns
// the encoded envelope.
func New(source string, ev Event) ([]byte, error) {
	if _, ok := ev.(*Ignored); ok {
		return nil, fmt.Errorf("cannot encode an ignored event")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate event id: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event data: %w", err)
	}

	h := ev.Header()
	*h = Envelope{
		Type:        ev.eventType(),
		SpecVersion: SpecVersion,
		ID:          id.String(),
		Source:      source,
		Time:        time.Now().UTC(),
		Data:        data,
	}

	raw, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return raw, nil
}
