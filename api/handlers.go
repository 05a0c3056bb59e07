package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/keilos1/harvestplan/app"
	"github.com/keilos1/harvestplan/core/model"
	coremqtt "github.com/keilos1/harvestplan/core/mqtt"
	"github.com/keilos1/harvestplan/core/planlog"
	"github.com/keilos1/harvestplan/core/report"
)

const source = "api"

func (s *Server) getDataset(c echo.Context) error {
	d, err := s.svc.Dataset(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newDatasetDTO(d))
}

func (s *Server) edit(c echo.Context, code int, op string, fn func(*model.Dataset) error) error {
	d, err := s.svc.Edit(c.Request().Context(), op, fn)
	if err != nil {
		return err
	}
	return c.JSON(code, newDatasetDTO(d))
}

// bind decodes and validates the request body into dst.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return badRequest("invalid json")
	}
	return c.Validate(dst)
}

func (s *Server) addSite(c echo.Context) error {
	var req addSiteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	income := make(map[model.Month]float64, len(req.Income))
	for m, v := range req.Income {
		income[model.Month(m)] = v
	}
	return s.edit(c, http.StatusCreated, "site.add", func(d *model.Dataset) error {
		return d.AddSite(model.SiteID(req.ID), *req.AreaCap, income)
	})
}

func (s *Server) setSite(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	var req setSiteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.edit(c, http.StatusOK, "site.set", func(d *model.Dataset) error {
		return d.SetAreaCap(model.SiteID(id), *req.AreaCap)
	})
}

func (s *Server) deleteSite(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	return s.edit(c, http.StatusOK, "site.delete", func(d *model.Dataset) error {
		return d.DeleteSite(model.SiteID(id))
	})
}

func (s *Server) addMonth(c echo.Context) error {
	var req addMonthRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	labor := make(map[model.SiteID]float64, len(req.Labor))
	for site, v := range req.Labor {
		labor[model.SiteID(site)] = v
	}
	return s.edit(c, http.StatusCreated, "month.add", func(d *model.Dataset) error {
		return d.AddMonth(model.Month(req.ID), *req.LaborCap, labor)
	})
}

func (s *Server) setMonth(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	var req setMonthRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	return s.edit(c, http.StatusOK, "month.set", func(d *model.Dataset) error {
		return d.SetLaborCap(model.Month(id), *req.LaborCap)
	})
}

func (s *Server) deleteMonth(c echo.Context) error {
	id, err := pathInt(c, "id")
	if err != nil {
		return err
	}
	return s.edit(c, http.StatusOK, "month.delete", func(d *model.Dataset) error {
		return d.DeleteMonth(model.Month(id))
	})
}

// setRates sets or, for an explicit null, unsets the income and labour
// rate of one site and month.
func (s *Server) setRates(c echo.Context) error {
	site, err := pathInt(c, "site")
	if err != nil {
		return err
	}
	month, err := pathInt(c, "month")
	if err != nil {
		return err
	}
	var req rateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid json")
	}
	if !req.Income.Set && !req.Labor.Set {
		return badRequest("income or labor is required")
	}
	p := model.Pair{Site: model.SiteID(site), Month: model.Month(month)}
	return s.edit(c, http.StatusOK, "rate.set", func(d *model.Dataset) error {
		if err := applyRate(req.Income, p, d.SetIncome, d.UnsetIncome); err != nil {
			return err
		}
		return applyRate(req.Labor, p, d.SetLabor, d.UnsetLabor)
	})
}

func applyRate(r optionalRate, p model.Pair, set func(model.Pair, float64) error, unset func(model.Pair) error) error {
	switch {
	case !r.Set:
		return nil
	case r.Value == nil:
		return unset(p)
	default:
		return set(p, *r.Value)
	}
}

func (s *Server) completeness(c echo.Context) error {
	rep, err := s.svc.Completeness(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"complete": rep.Empty(), "missing": rep})
}

func (s *Server) solve(c echo.Context) error {
	var req solveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid json")
	}
	out, err := s.svc.Solve(c.Request().Context(), app.SolveRequest{Source: source, DropIncomplete: req.DropIncomplete})
	if out == nil {
		return err
	}
	if out.Result == nil {
		if err == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "no result")
		}
		body := echo.Map{"error": err.Error()}
		if !out.Missing.Empty() {
			body["missing"] = out.Missing
		}
		if out.RunID != "" {
			body["run_id"] = out.RunID
		}
		return c.JSON(statusOf(err), body)
	}
	resp := solveResponse{PlanMessage: coremqtt.NewPlanMessage(out.RunID, source, out.Result)}
	if !out.Missing.Empty() {
		resp.Missing = &out.Missing
	}
	code := http.StatusOK
	if err != nil {
		code = statusOf(err)
	}
	return c.JSON(code, resp)
}

func (s *Server) solveText(c echo.Context) error {
	drop, _ := strconv.ParseBool(c.QueryParam("drop_incomplete"))
	out, err := s.svc.Solve(c.Request().Context(), app.SolveRequest{Source: source, DropIncomplete: drop})
	if out == nil || out.Result == nil {
		if err == nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "no result")
		}
		return err
	}
	var b strings.Builder
	if err := report.Text(&b, out.Result, report.DefaultOptions()); err != nil {
		return err
	}
	code := http.StatusOK
	if err != nil {
		code = statusOf(err)
	}
	return c.String(code, b.String())
}

// runs accepts start and end as RFC 3339, status and limit.
func (s *Server) runs(c echo.Context) error {
	var q planlog.Query
	for name, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if v := c.QueryParam(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return badRequest("invalid " + name)
			}
			*dst = t
		}
	}
	if v := c.QueryParam("status"); v != "" {
		st, err := planlog.ParseStatus(v)
		if err != nil {
			return badRequest("invalid status")
		}
		q.Status = &st
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return badRequest("invalid limit")
		}
		q.Limit = n
	}
	recs, err := s.svc.Runs(c.Request().Context(), q)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []planlog.Record{}
	}
	return c.JSON(http.StatusOK, recs)
}

func pathInt(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.Param(name))
	if err != nil {
		return 0, badRequest("invalid " + name)
	}
	return v, nil
}
