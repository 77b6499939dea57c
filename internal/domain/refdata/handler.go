package refdata

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/reference-data", h.ListEnumerations)
	api.GET("/reference-data/:name", h.GetEnumeration)
}

func (h *Handler) ListEnumerations(c echo.Context) error {
	return c.JSON(http.StatusOK, Names())
}

func (h *Handler) GetEnumeration(c echo.Context) error {
	name := Name(c.Param("name"))
	values, ok := Values(name)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown reference enumeration: "+string(name))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"name":   name,
		"values": values,
	})
}
