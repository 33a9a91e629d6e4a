package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"walkpack/internal/access"
	"walkpack/internal/admission"
	"walkpack/internal/audit"
	"walkpack/internal/availability"
	"walkpack/internal/eligibility"
	"walkpack/internal/ledger"
	"walkpack/internal/model"
)

// dashboardLimit matches the walker dashboard's upcoming and recent lists.
const dashboardLimit = 5

// Deps are the services behind the handlers.
type Deps struct {
	Ledger       *ledger.Ledger
	Admission    *admission.Controller
	Availability *availability.View
	Access       *access.Service
	Eligibility  *eligibility.Gate
	Audit        *audit.Exporter
}

// DogEligibility tells the detail page whether a dog may be booked.
type DogEligibility struct {
	Dog      model.Dog `json:"dog"`
	Eligible bool      `json:"eligible"`
}

// WalkBlockResponse is the body of GET /api/walk-blocks/{id}.
type WalkBlockResponse struct {
	WalkBlock    *model.WalkBlock           `json:"walk_block"`
	Availability model.AvailabilitySnapshot `json:"availability"`
	Label        string                     `json:"label"`
	Pack         []model.PackMember         `json:"pack"`
	MyBooking    *model.Booking             `json:"my_booking,omitempty"`
	MyDogs       []DogEligibility           `json:"my_dogs,omitempty"`
}

// AvailabilityResponse is the body of GET /api/walk-blocks/{id}/availability.
type AvailabilityResponse struct {
	model.AvailabilitySnapshot
	Label string `json:"label"`
}

// BookingRequest is the body of POST /api/walk-blocks/{id}/bookings.
type BookingRequest struct {
	DogID string `json:"dog_id"`
}

// DashboardResponse is the body of GET /api/walkers/me/dashboard.
type DashboardResponse struct {
	Walker         *model.Walker                    `json:"walker"`
	Upcoming       []availability.BlockAvailability `json:"upcoming"`
	RecentBookings []model.Booking                  `json:"recent_bookings"`
}

func (s *HTTPServer) handleWalkBlock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	block, snap, err := s.deps.Availability.Detail(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	pack, err := s.deps.Ledger.Pack(ctx, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := WalkBlockResponse{
		WalkBlock:    block,
		Availability: snap,
		Label:        snap.Label(),
		Pack:         nonNil(pack),
	}

	if p := principal(r); p.AccountID != "" {
		mine, err := s.deps.Ledger.MyBookingForBlock(ctx, p, id)
		switch {
		case err == nil:
			resp.MyBooking = mine
		case !errors.Is(err, model.ErrNotFound):
			s.writeDomainError(w, r, err)
			return
		}

		dogs, err := s.deps.Ledger.ListMyDogs(ctx, p)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		for _, d := range dogs {
			ok, err := s.deps.Eligibility.IsEligible(ctx, d.ID, block.WalkerID)
			if err != nil {
				s.writeDomainError(w, r, err)
				return
			}
			resp.MyDogs = append(resp.MyDogs, DogEligibility{Dog: d, Eligible: ok})
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Availability.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{AvailabilitySnapshot: snap, Label: availability.Label(snap)})
}

func (s *HTTPServer) handlePack(w http.ResponseWriter, r *http.Request) {
	pack, err := s.deps.Ledger.Pack(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pack": nonNil(pack)})
}

func (s *HTTPServer) handleRequestBooking(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}

	var req BookingRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if req.DogID == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "dog_id is required")
		return
	}

	booking, err := s.deps.Ledger.RequestBooking(r.Context(), p, r.PathValue("id"), req.DogID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleBlockBookings(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	bookings, err := s.deps.Ledger.ListBookings(r.Context(), p, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (s *HTTPServer) handleAdmitPending(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	admitted, err := s.deps.Admission.AdmitPending(r.Context(), p, r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"admitted": nonNil(admitted)})
}

func (s *HTTPServer) handleDecision(to model.BookingStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := requireAccount(w, r)
		if !ok {
			return
		}

		var (
			booking *model.Booking
			err     error
		)
		if to == model.StatusApproved {
			booking, err = s.deps.Admission.Approve(r.Context(), p, r.PathValue("id"))
		} else {
			booking, err = s.deps.Admission.Reject(r.Context(), p, r.PathValue("id"))
		}
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, booking)
	}
}

func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	bookings, err := s.deps.Ledger.ListMyBookings(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (s *HTTPServer) handleMyDogs(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	dogs, err := s.deps.Ledger.ListMyDogs(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dogs": nonNil(dogs)})
}

func (s *HTTPServer) handleWalkerDashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	walker, err := s.deps.Access.ResolveWalker(ctx, p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	upcoming, err := s.deps.Availability.UpcomingForWalker(ctx, walker.ID, dashboardLimit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	recent, err := s.deps.Ledger.ListWalkerBookings(ctx, p, dashboardLimit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		Walker:         walker,
		Upcoming:       nonNil(upcoming),
		RecentBookings: nonNil(recent),
	})
}

func (s *HTTPServer) handleWalkerBookings(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	bookings, err := s.deps.Ledger.ListWalkerBookings(r.Context(), p, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(bookings)})
}

func (s *HTTPServer) handleWalkerDogs(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	dogs, err := s.deps.Ledger.ListWalkerDogs(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dogs": nonNil(dogs)})
}

func (s *HTTPServer) handleWalkerWalkBlocks(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}
	walker, err := s.deps.Access.ResolveWalker(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	blocks, err := s.deps.Availability.UpcomingForWalker(r.Context(), walker.ID, limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"walk_blocks": nonNil(blocks)})
}

func (s *HTTPServer) handleWalkerExport(w http.ResponseWriter, r *http.Request) {
	p, ok := requireAccount(w, r)
	if !ok {
		return
	}
	walker, err := s.deps.Access.ResolveWalker(r.Context(), p)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.deps.Audit.Export(r.Context(), &buf, walker.ID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", audit.Filename(time.Now(), walker.ID)))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// queryLimit parses ?limit=N; absent means no limit.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return n, nil
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
