package patrons

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

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, utils.KindBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	patron, err := h.service.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusCreated, patron)
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, utils.KindBadRequest, err.Error(), http.StatusBadRequest)
		return
	}

	patron, token, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		utils.JSONError(w, utils.KindUnauthorized, "invalid credentials", http.StatusUnauthorized)
		return
	}
	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"patron": patron,
		"token":  token,
	})
}

func (h *Handler) HandleGetPatron(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		utils.JSONError(w, utils.KindBadRequest, "invalid patron id", http.StatusBadRequest)
		return
	}

	patron, err := h.service.GetPatron(r.Context(), id)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.JSON(w, http.StatusOK, patron)
}
