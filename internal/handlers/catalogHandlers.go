package handlers

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"gbconnect/internal/models"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

const maxImageBytes = 10 << 20

type CatalogHandler struct {
	catalog services.CatalogService
}

func NewCatalogHandler(catalog services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ServiceFilter{
		Category: q.Get("category"),
		Location: q.Get("location"),
		Query:    q.Get("q"),
	}

	var err error
	if filter.MinPrice, err = utils.QueryFloat(r, "minPrice"); err != nil {
		utils.SendJSONError(w, "minPrice must be a number", http.StatusBadRequest)
		return
	}
	if filter.MaxPrice, err = utils.QueryFloat(r, "maxPrice"); err != nil {
		utils.SendJSONError(w, "maxPrice must be a number", http.StatusBadRequest)
		return
	}
	if filter.Page, err = utils.QueryInt64(r, "page", 1); err != nil {
		utils.SendJSONError(w, "page must be an integer", http.StatusBadRequest)
		return
	}
	if filter.Limit, err = utils.QueryInt64(r, "limit", services.DefaultPageLimit); err != nil {
		utils.SendJSONError(w, "limit must be an integer", http.StatusBadRequest)
		return
	}

	page, err := h.catalog.ListServices(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, err, "list services")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, page)
}

func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	serviceID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	svc, err := h.catalog.GetService(r.Context(), serviceID)
	if err != nil {
		writeServiceError(w, r, err, "get service")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, svc)
}

func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	var req models.CreateServiceRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	svc, err := h.catalog.CreateService(r.Context(), providerID, &req)
	if err != nil {
		writeServiceError(w, r, err, "create service")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, svc)
}

func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	serviceID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var update models.ServiceUpdate
	if err := utils.DecodeJSONBody(w, r, &update); err != nil {
		return
	}

	svc, err := h.catalog.UpdateService(r.Context(), providerID, serviceID, &update)
	if err != nil {
		writeServiceError(w, r, err, "update service")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, svc)
}

func (h *CatalogHandler) DeleteService(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	serviceID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.catalog.DeleteService(r.Context(), providerID, serviceID); err != nil {
		writeServiceError(w, r, err, "delete service")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CatalogHandler) ListMyServices(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	owned, err := h.catalog.ListProviderServices(r.Context(), providerID)
	if err != nil {
		writeServiceError(w, r, err, "list provider services")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, owned)
}

func (h *CatalogHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	serviceID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)
	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		utils.SendJSONError(w, "Invalid multipart form or image too large", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		utils.SendJSONError(w, "Missing image file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if ct := header.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		utils.SendJSONError(w, "File must be an image", http.StatusBadRequest)
		return
	}

	log.Debug().Str("service_id", serviceID.Hex()).Str("filename", header.Filename).Int64("size", header.Size).Msg("Uploading service image")
	svc, err := h.catalog.AddServiceImage(r.Context(), providerID, serviceID, file)
	if err != nil {
		writeServiceError(w, r, err, "upload service image")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, svc)
}
