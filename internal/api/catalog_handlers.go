package api

import (
	"bytes"
	"net/http"

	"rentalhub/internal/export"
	"rentalhub/internal/models"
)

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	window, err := windowFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	availability, err := s.svc.Rentals.GetAvailability(r.Context(), id, window)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (s *HTTPServer) handleListAvailability(w http.ResponseWriter, r *http.Request) {
	window, err := windowFromQuery(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	results, err := s.svc.Rentals.ListAvailability(r.Context(), window)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func windowFromQuery(r *http.Request) (models.Window, error) {
	q := r.URL.Query()
	start, err := parseBound("start", q.Get("start"), false)
	if err != nil {
		return models.Window{}, err
	}
	end, err := parseBound("end", q.Get("end"), true)
	if err != nil {
		return models.Window{}, err
	}
	return models.NewWindow(start, end), nil
}

func (s *HTTPServer) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.svc.Catalog.ListProducts(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *HTTPServer) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	product, err := s.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *HTTPServer) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.svc.Catalog.CreateProduct(r.Context(), &product); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (s *HTTPServer) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var product models.Product
	if err := decodeJSON(r, &product); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	product.ID = id

	if err := s.svc.Catalog.UpdateProduct(r.Context(), &product); err != nil {
		s.fail(w, r, err)
		return
	}

	updated, err := s.svc.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	product, err := s.svc.Catalog.DeleteProduct(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if product == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *HTTPServer) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.svc.Catalog.ListClients(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if clients == nil {
		clients = []*models.Client{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *HTTPServer) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var client models.Client
	if err := decodeJSON(r, &client); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.svc.Catalog.CreateClient(r.Context(), &client); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (s *HTTPServer) handleGetClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	client, err := s.svc.Catalog.GetClient(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var client models.Client
	if err := decodeJSON(r, &client); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	client.ID = id

	if err := s.svc.Catalog.UpdateClient(r.Context(), &client); err != nil {
		s.fail(w, r, err)
		return
	}

	updated, err := s.svc.Catalog.GetClient(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	client, err := s.svc.Catalog.DeleteClient(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if client == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

func (s *HTTPServer) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Catalog.ListUsers(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *HTTPServer) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decodeJSON(r, &user); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := s.svc.Catalog.CreateUser(r.Context(), &user); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *HTTPServer) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.svc.Catalog.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var user models.User
	if err := decodeJSON(r, &user); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user.ID = id

	if err := s.svc.Catalog.UpdateUser(r.Context(), &user); err != nil {
		s.fail(w, r, err)
		return
	}

	updated, err := s.svc.Catalog.GetUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *HTTPServer) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	user, err := s.svc.Catalog.DeleteUser(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *HTTPServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Dashboard.Stats(r.Context(), s.now())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleExportRentals streams an xlsx workbook for rentals starting in [from, to).
func (s *HTTPServer) handleExportRentals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := parseDate("from", q.Get("from"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseDate("to", q.Get("to"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !from.Before(to) {
		writeError(w, http.StatusBadRequest, "from must be before to")
		return
	}

	var buf bytes.Buffer
	if err := s.svc.Exporter.WriteTo(r.Context(), &buf, from, to); err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(from, to)+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		requestLogger(r, s.logger).Error().Err(err).Msg("write export")
	}
}
