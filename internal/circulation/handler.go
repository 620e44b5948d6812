package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"biblioteca/internal/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type loanRequest struct {
	BookID   uuid.UUID `json:"book_id"`
	PatronID uuid.UUID `json:"patron_id"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, utils.KindBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := h.service.Checkout(r.Context(), req.BookID, req.PatronID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, loan)
}

func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.JSONError(w, utils.KindBadRequest, "invalid loan id", http.StatusBadRequest)
		return
	}

	outcome, err := h.service.Return(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, outcome)
}

func (h *Handler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, utils.KindBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.Reserve(r.Context(), req.BookID, req.PatronID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, result)
}

func (h *Handler) HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.JSONError(w, utils.KindBadRequest, "invalid reservation id", http.StatusBadRequest)
		return
	}

	res, err := h.service.CancelReservation(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *Handler) HandleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.JSONError(w, utils.KindBadRequest, "invalid loan id", http.StatusBadRequest)
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, loan)
}

func (h *Handler) HandleListLoans(w http.ResponseWriter, r *http.Request) {
	var patronID uuid.UUID
	if raw := r.URL.Query().Get("patron_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			utils.JSONError(w, utils.KindBadRequest, "invalid patron_id", http.StatusBadRequest)
			return
		}
		patronID = id
	}
	openOnly := r.URL.Query().Get("open") == "true"

	loans, err := h.service.ListLoans(r.Context(), patronID, openOnly)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, loans)
}

func (h *Handler) HandleListReservations(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.JSONError(w, utils.KindBadRequest, "invalid book id", http.StatusBadRequest)
		return
	}

	reservations, err := h.service.ListReservations(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, reservations)
}
