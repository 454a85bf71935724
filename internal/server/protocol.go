package server

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfeidau/pcfhub/internal/apperr"
	"github.com/wolfeidau/pcfhub/internal/auth"
	"github.com/wolfeidau/pcfhub/internal/federation"
	httpmiddleware "github.com/wolfeidau/pcfhub/internal/http"
	"github.com/wolfeidau/pcfhub/internal/pcf"
)

type footprintList struct {
	Data []*pcf.ProductFootprint `json:"data"`
}

type footprintDoc struct {
	Data *pcf.ProductFootprint `json:"data"`
}

func (s *Server) listFootprints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := auth.RequirePermission(ctx, auth.PermCatalogRead)
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}

	query := r.URL.Query()
	limit, err := intParam(query, "limit")
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}
	offset, err := intParam(query, "limitOffset")
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}
	expr := query.Get("$filter")

	fps, err := s.catalog.ListFootprints(ctx, id.OrganizationID, expr, limit, offset)
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}

	if limit == 0 {
		limit = federation.DefaultPageSize
	}
	if len(fps) == limit {
		w.Header().Set("Link", `<`+s.nextPage(expr, limit, offset+limit)+`>; rel="next"`)
	}

	httpmiddleware.WriteJSON(w, http.StatusOK, footprintList{Data: fps})
}

func (s *Server) nextPage(expr string, limit, offset int) string {
	v := url.Values{}
	if expr != "" {
		v.Set("$filter", expr)
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("limitOffset", strconv.Itoa(offset))
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + federation.PathFootprints + "?" + v.Encode()
}

func (s *Server) getFootprint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := auth.RequirePermission(ctx, auth.PermCatalogRead)
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}

	dataID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeProtocolError(w, r, apperr.Request("invalid footprint id"))
		return
	}

	fp, err := s.catalog.GetFootprint(ctx, id.OrganizationID, dataID)
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}

	httpmiddleware.WriteJSON(w, http.StatusOK, footprintDoc{Data: fp})
}

// postEvent accepts one event envelope. The body is verified against the
// request signature before it is decoded.
func (s *Server) postEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := auth.RequirePermission(ctx, auth.PermEventsReceive)
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}

	body, err := httpmiddleware.ReadBody(w, r, s.cfg.MaxBodyBytes)
	if err != nil {
		writeProtocolError(w, r, err)
		return
	}

	if err := s.verifier.Verify(ctx, r, body); err != nil {
		writeProtocolError(w, r, err)
		return
	}

	if err := s.dispatcher.Handle(ctx, id, body); err != nil {
		writeProtocolError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func intParam(query url.Values, name string) (int, error) {
	raw := query.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Request("%s must be a non-negative integer", name)
	}
	return n, nil
}
