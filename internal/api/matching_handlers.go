package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/booking"
	"github.com/hackgods/clinic-availability/internal/directory"
	"github.com/hackgods/clinic-availability/internal/geo"
	"github.com/hackgods/clinic-availability/internal/matching"
)

// matchDeps groups what /match needs besides the engine itself.
type matchDeps struct {
	slots    *availability.Service
	engine   *matching.Engine
	profiles directory.ProfileLookup
	now      func() time.Time
}

func decodeLocation(r *http.Request) (LocationRequest, geo.Coordinate, error) {
	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, geo.Coordinate{}, errors.New("could not parse JSON")
	}
	if req.Lat == nil || req.Lng == nil {
		return req, geo.Coordinate{}, errors.New("lat and lng are required")
	}
	c := geo.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	if err := c.Validate(); err != nil {
		return req, geo.Coordinate{}, err
	}
	return req, c, nil
}

func matchHandler(d matchDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, loc, err := decodeLocation(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		profile, err := lookupProfile(r.Context(), d.profiles, req.PatientID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		slots, err := d.slots.GetAllUnbooked(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		best, err := d.engine.FindBestSlot(r.Context(), slots, matching.Request{
			Location: &loc,
			Profile:  profile,
			Now:      d.now(),
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if best == nil {
			writeError(w, http.StatusNotFound, "no_slot_available", "no slot matched the request")
			return
		}

		writeJSON(w, http.StatusOK, toMatchResponse(best))
	}
}

// lookupProfile returns an empty profile for anonymous or unknown patients.
func lookupProfile(ctx context.Context, profiles directory.ProfileLookup, patientID string) (directory.Profile, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" || profiles == nil {
		return directory.Profile{PatientID: patientID}, nil
	}
	p, err := profiles.ProfileByPatientID(ctx, patientID)
	if errors.Is(err, directory.ErrPatientNotFound) {
		return directory.Profile{PatientID: patientID}, nil
	}
	if err != nil {
		return directory.Profile{}, err
	}
	return *p, nil
}

func bookSlotHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := slotIDParam(w, r)
		if !ok {
			return
		}
		var req PatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.Book(r.Context(), slotID, req.PatientID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*slot))
	}
}

func cancelSlotHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := slotIDParam(w, r)
		if !ok {
			return
		}
		var req PatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slot, err := svc.Cancel(r.Context(), slotID, req.PatientID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSlotResponse(*slot))
	}
}

func autoBookHandler(svc *booking.Service, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, loc, err := decodeLocation(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}

		booked, err := svc.AutoBook(r.Context(), req.PatientID, loc, now())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toMatchResponse(booked))
	}
}

func geocodeHandler(g geo.Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimSpace(r.URL.Query().Get("address"))
		if address == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "address is required")
			return
		}

		c, err := g.Geocode(r.Context(), address)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, GeocodeResponse{Address: address, Lat: c.Lat, Lng: c.Lng})
	}
}
