// Package echo exposes the account-linking pipeline over HTTP for the
// marketing dashboard. Every route requires the dashboard session token; the
// handlers are thin adapters that translate pipeline results into stable
// JSON payloads.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.pilab.hu/adlink/domain"
	linkerr "go.pilab.hu/adlink/errors"
	"go.pilab.hu/adlink/internal/linking"
	"go.pilab.hu/adlink/middleware"
)

// LinkAPI holds the pipeline dependencies for the HTTP surface.
type LinkAPI struct {
	exchanger  *linking.Exchanger
	manager    *linking.Manager
	submitter  *linking.Submitter
	creds      domain.CredentialRepository
	selections domain.SelectionRepository
	healthPing func(echo.Context) error
}

// NewLinkAPI initializes the linking API.
func NewLinkAPI(
	exchanger *linking.Exchanger,
	manager *linking.Manager,
	submitter *linking.Submitter,
	creds domain.CredentialRepository,
	selections domain.SelectionRepository,
	healthPing func(echo.Context) error,
) *LinkAPI {
	return &LinkAPI{
		exchanger:  exchanger,
		manager:    manager,
		submitter:  submitter,
		creds:      creds,
		selections: selections,
		healthPing: healthPing,
	}
}

// RegisterRoutes registers the linking routes. sessionAuth guards everything
// except the health endpoint.
func (a *LinkAPI) RegisterRoutes(e *echo.Echo, sessionAuth echo.MiddlewareFunc) {
	e.GET("/healthz", a.HealthHandler)

	g := e.Group("", sessionAuth)
	g.GET("/link/start", a.LinkStartHandler)
	g.GET("/link/callback", a.LinkCallbackHandler)
	g.GET("/link/status", a.LinkStatusHandler)
	g.DELETE("/link", a.UnlinkHandler)

	g.POST("/wizard", a.WizardMountHandler)
	g.GET("/wizard", a.WizardStateHandler)
	g.POST("/wizard/select", a.WizardSelectHandler)
	g.POST("/wizard/clear", a.WizardClearHandler)
	g.POST("/wizard/advance", a.WizardAdvanceHandler)
	g.POST("/wizard/back", a.WizardBackHandler)
	g.POST("/wizard/retry", a.WizardRetryHandler)
	g.POST("/wizard/submit", a.WizardSubmitHandler)
	g.DELETE("/wizard", a.WizardAbandonHandler)

	g.GET("/selection", a.SelectionHandler)
}

type errorPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func linkErrorResponse(c echo.Context, err error) error {
	kind := linkerr.KindOf(err)
	if kind == "" {
		log.Error().Err(err).Msg("unclassified pipeline error")
		return c.JSON(http.StatusInternalServerError, errorPayload{
			Kind: "internal", Reason: linkerr.Reason(err),
		})
	}
	return c.JSON(linkerr.HTTPStatus(err), errorPayload{
		Kind: string(kind), Reason: linkerr.Reason(err),
	})
}

// LinkStartHandler returns the platform consent URL for the outbound leg.
func (a *LinkAPI) LinkStartHandler(c echo.Context) error {
	userID := middleware.UserID(c)
	return c.JSON(http.StatusOK, map[string]string{
		"authorization_url": a.exchanger.AuthorizationURL(userID),
	})
}

// LinkCallbackHandler completes the OAuth redirect: validates the
// anti-forgery state, exchanges the code, resolves the identity and stores
// the credential.
func (a *LinkAPI) LinkCallbackHandler(c echo.Context) error {
	params := linking.CallbackParams{
		Code:      c.QueryParam("code"),
		State:     c.QueryParam("state"),
		ErrorCode: c.QueryParam("error"),
		UserID:    middleware.UserID(c),
	}

	cred, err := a.exchanger.Complete(c.Request().Context(), params)
	if err != nil {
		return linkErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"linked":           true,
		"platform_user_id": cred.PlatformUserID,
	})
}

// LinkStatusHandler reports credential presence for the user.
func (a *LinkAPI) LinkStatusHandler(c echo.Context) error {
	exists, err := a.creds.Exists(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"linked": exists})
}

// UnlinkHandler removes the stored credential and discards any live wizard.
func (a *LinkAPI) UnlinkHandler(c echo.Context) error {
	userID := middleware.UserID(c)
	a.manager.Discard(userID)
	if err := a.creds.Delete(c.Request().Context(), userID); err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"linked": false})
}

// WizardMountHandler creates the wizard for the user and starts discovery.
func (a *LinkAPI) WizardMountHandler(c echo.Context) error {
	w, err := a.manager.Mount(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

func (a *LinkAPI) wizard(c echo.Context) (*linking.Wizard, error) {
	w := a.manager.Get(middleware.UserID(c))
	if w == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no wizard is mounted for this user")
	}
	return w, nil
}

// WizardStateHandler returns the current wizard snapshot for rendering.
func (a *LinkAPI) WizardStateHandler(c echo.Context) error {
	w, err := a.wizard(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

type selectionRequest struct {
	Kind domain.ResourceKind `json:"kind"`
	ID   string              `json:"id"`
}

// WizardSelectHandler stages one choice for a kind.
func (a *LinkAPI) WizardSelectHandler(c echo.Context) error {
	w, err := a.wizard(c)
	if err != nil {
		return err
	}
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := w.Select(req.Kind, req.ID); err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// WizardClearHandler removes the staged choice for a kind.
func (a *LinkAPI) WizardClearHandler(c echo.Context) error {
	w, err := a.wizard(c)
	if err != nil {
		return err
	}
	var req selectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	w.ClearSelection(req.Kind)
	return c.JSON(http.StatusOK, w.Snapshot())
}

// WizardAdvanceHandler moves to the next step when the current step's
// requirement is met. A validation failure leaves the step unchanged and is
// reported in the snapshot, not as a transport error.
func (a *LinkAPI) WizardAdvanceHandler(c echo.Context) error {
	w, err := a.wizard(c)
	if err != nil {
		return err
	}
	if err := w.Advance(c.Request().Context()); err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// WizardBackHandler returns to the previous step.
func (a *LinkAPI) WizardBackHandler(c echo.Context) error {
	w, err := a.wizard(c)
	if err != nil {
		return err
	}
	if err := w.Back(); err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// WizardRetryHandler is the manual "retry connection" affordance after an
// empty or timed-out discovery.
func (a *LinkAPI) WizardRetryHandler(c echo.Context) error {
	w, err := a.manager.Retry(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return linkErrorResponse(c, err)
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// WizardSubmitHandler commits the selection. On success the wizard is
// discarded; on failure it is preserved so the user retries without
// re-selecting.
func (a *LinkAPI) WizardSubmitHandler(c echo.Context) error {
	userID := middleware.UserID(c)
	w, err := a.wizard(c)
	if err != nil {
		return err
	}

	rec, err := a.submitter.Submit(c.Request().Context(), w, c.QueryParam("mode"))
	if err != nil {
		return linkErrorResponse(c, err)
	}

	a.manager.Discard(userID)
	return c.JSON(http.StatusOK, rec)
}

// WizardAbandonHandler tears down the wizard, cancelling pending timers and
// in-flight fetches.
func (a *LinkAPI) WizardAbandonHandler(c echo.Context) error {
	a.manager.Discard(middleware.UserID(c))
	return c.NoContent(http.StatusNoContent)
}

// SelectionHandler returns the last committed selection record.
func (a *LinkAPI) SelectionHandler(c echo.Context) error {
	mode := c.QueryParam("mode")
	if mode == "" {
		mode = domain.DefaultLinkMode
	}
	rec, err := a.selections.GetByUserAndMode(c.Request().Context(), middleware.UserID(c), mode)
	if err != nil {
		return linkErrorResponse(c, err)
	}
	if rec == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no selection has been committed")
	}
	return c.JSON(http.StatusOK, rec)
}

// HealthHandler reports process and datastore health.
func (a *LinkAPI) HealthHandler(c echo.Context) error {
	if a.healthPing != nil {
		if err := a.healthPing(c); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
