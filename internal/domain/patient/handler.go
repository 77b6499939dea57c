package patient

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/his/patientrecords/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.GET("/patients/:lbp", h.GetPatient)
	api.POST("/patients", h.CreatePatient)
	api.PUT("/patients", h.UpdatePatientByJmbg)
	api.PUT("/patients/:lbp", h.UpdatePatientByLbp)
	api.DELETE("/patients/:lbp", h.DeletePatient)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	req, err := bindRequest(c, true)
	if err != nil {
		return err
	}
	v, err := h.svc.CreatePatient(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) UpdatePatientByJmbg(c echo.Context) error {
	req, err := bindRequest(c, true)
	if err != nil {
		return err
	}
	v, err := h.svc.UpdatePatientByJmbg(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) UpdatePatientByLbp(c echo.Context) error {
	lbp, err := lbpParam(c)
	if err != nil {
		return err
	}
	// The stored jmbg is kept, so the body may omit it.
	req, err := bindRequest(c, false)
	if err != nil {
		return err
	}
	v, err := h.svc.UpdatePatientByLbp(c.Request().Context(), req, lbp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	lbp, err := lbpParam(c)
	if err != nil {
		return err
	}
	v, err := h.svc.DeletePatient(c.Request().Context(), lbp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) GetPatient(c echo.Context) error {
	lbp, err := lbpParam(c)
	if err != nil {
		return err
	}
	v, err := h.svc.GetPatientByLbp(c.Request().Context(), lbp)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) ListPatients(c echo.Context) error {
	f, err := filterFromQuery(c)
	if err != nil {
		return err
	}
	page, err := h.svc.GetPatients(c.Request().Context(), f, pagination.FromContext(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, page)
}

func bindRequest(c echo.Context, requireJmbg bool) (*PatientRequest, error) {
	var req PatientRequest
	if err := c.Bind(&req); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return nil, httpError(ve)
		}
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) && ute.Field != "" {
			return nil, httpError(&ValidationError{Field: ute.Field, Reason: "expected " + ute.Type.String() + ", got " + ute.Value})
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	switch {
	case requireJmbg && req.Jmbg == "":
		return nil, httpError(&ValidationError{Field: "jmbg", Reason: "is required"})
	case req.FirstName == "":
		return nil, httpError(&ValidationError{Field: "first_name", Reason: "is required"})
	case req.LastName == "":
		return nil, httpError(&ValidationError{Field: "last_name", Reason: "is required"})
	}
	return &req, nil
}

func lbpParam(c echo.Context) (uuid.UUID, error) {
	lbp, err := uuid.Parse(c.Param("lbp"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid lbp")
	}
	return lbp, nil
}

func filterFromQuery(c echo.Context) (PatientFilter, error) {
	var f PatientFilter
	if v := c.QueryParam("lbp"); v != "" {
		lbp, err := uuid.Parse(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid lbp")
		}
		f.Lbp = &lbp
	}
	if v := c.QueryParam("first_name"); v != "" {
		f.FirstName = &v
	}
	if v := c.QueryParam("last_name"); v != "" {
		f.LastName = &v
	}
	if v := c.QueryParam("jmbg"); v != "" {
		f.Jmbg = &v
	}
	if v := c.QueryParam("deleted"); v != "" {
		deleted, err := strconv.ParseBool(v)
		if err != nil {
			return f, echo.NewHTTPError(http.StatusBadRequest, "invalid deleted flag")
		}
		f.Deleted = deleted
	}
	return f, nil
}

// httpError maps service errors onto HTTP responses.
func httpError(err error) error {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusBadRequest, map[string]string{
			"message": ve.Error(),
			"field":   ve.Field,
		})
	case errors.Is(err, ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "patient with this jmbg already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(err)
	}
}
