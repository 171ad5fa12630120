package accounts

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/portr-admin/portr-admin/internal/crypto"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
	"github.com/portr-admin/portr-admin/internal/mailer"
	"github.com/portr-admin/portr-admin/internal/middleware"
	"github.com/portr-admin/portr-admin/internal/services"
)

func sampleUser() *models.User {
	first := "Amal"
	return &models.User{
		ID:          "user-1",
		Email:       "amal@example.com",
		FirstName:   &first,
		IsSuperuser: false,
	}
}

func sampleTeamUser() *models.TeamUserContext {
	return &models.TeamUserContext{
		TeamUser: models.TeamUser{
			ID:        "tu-1",
			UserID:    "user-1",
			TeamID:    "team-1",
			Role:      models.RoleAdmin,
			SecretKey: "sk-current",
		},
		Team: models.Team{ID: "team-1", Name: "Portr", Slug: "portr"},
	}
}

// withIdentity injects the user and membership the auth middleware would have
// resolved.
func withIdentity(user *models.User, member *models.TeamUserContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserKey, user)
		if member != nil {
			c.Set(middleware.TeamUserKey, member)
		}
		c.Next()
	}
}

func newUserRouter(t *testing.T) (sqlmock.Sqlmock, *gin.Engine) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := testConfig()
	cipher, err := crypto.NewFieldCipherFromPassphrase(cfg.Crypto.EncryptionKey)
	if err != nil {
		t.Fatalf("crypto.NewFieldCipherFromPassphrase: %v", err)
	}
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	userRepo := repositories.NewUserRepository(db, cipher)
	teamRepo := repositories.NewTeamRepository(db)
	settingsRepo := repositories.NewSettingsRepository(sqlxDB, cipher)

	userService := services.NewUserService(userRepo, teamRepo)
	teamService := services.NewTeamService(teamRepo, settingsRepo, mailer.New(), cfg)

	h := NewUserHandlers(userService, teamService, teamRepo)

	r := gin.New()
	r.Use(withIdentity(sampleUser(), sampleTeamUser()))
	r.GET("/user/me", h.MeHandler())
	r.GET("/user/me/teams", h.MyTeamsHandler())
	r.PATCH("/user/me/update", h.UpdateProfileHandler())
	r.PATCH("/user/me/change-password", h.ChangePasswordHandler())
	r.PATCH("/user/me/rotate-secret-key", h.RotateSecretKeyHandler())

	return mock, r
}

// ---------------------------------------------------------------------------
// MeHandler
// ---------------------------------------------------------------------------

func TestMe_ReturnsMembershipWithUser(t *testing.T) {
	_, r := newUserRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/me", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["secret_key"] != "sk-current" {
		t.Errorf("expected membership secret key, got %v", body["secret_key"])
	}
	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected embedded user object, got %v", body["user"])
	}
	if user["email"] != "amal@example.com" {
		t.Errorf("expected user email, got %v", user["email"])
	}
}

// ---------------------------------------------------------------------------
// MyTeamsHandler
// ---------------------------------------------------------------------------

func TestMyTeams_ListsTeams(t *testing.T) {
	mock, r := newUserRouter(t)

	now := time.Now()
	mock.ExpectQuery(`FROM teams t\s+JOIN team_users tu`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows(teamSQLCols).
			AddRow("team-1", "Portr", "portr", now, now).
			AddRow("team-2", "Acme", "acme", now, now))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/user/me/teams", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var teams []models.Team
	mustDecode(t, w, &teams)
	if len(teams) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(teams))
	}
	if teams[1].Slug != "acme" {
		t.Errorf("expected second team slug acme, got %q", teams[1].Slug)
	}
}

// ---------------------------------------------------------------------------
// UpdateProfileHandler
// ---------------------------------------------------------------------------

func TestUpdateProfile_MergesFields(t *testing.T) {
	mock, r := newUserRouter(t)

	mock.ExpectExec(`UPDATE users\s+SET first_name = \$2, last_name = \$3, updated_at = \$4\s+WHERE id = \$1`).
		WithArgs("user-1", "New", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := patchJSON(t, r, "/user/me/update", map[string]string{"first_name": "New"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["first_name"] != "New" {
		t.Errorf("expected updated first name in response, got %v", body["first_name"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ChangePasswordHandler
// ---------------------------------------------------------------------------

func TestChangePassword_EmptyPassword(t *testing.T) {
	_, r := newUserRouter(t)

	w := patchJSON(t, r, "/user/me/change-password", map[string]string{"password": ""})

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["message"] != "Password cannot be empty" {
		t.Errorf("expected validation message, got %v", body)
	}
}

func TestChangePassword_UpdatesHash(t *testing.T) {
	mock, r := newUserRouter(t)

	mock.ExpectExec(`UPDATE users SET password_hash = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs("user-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := patchJSON(t, r, "/user/me/change-password", map[string]string{"password": "new-password"})

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["message"] != "Password changed" {
		t.Errorf("expected confirmation message, got %v", body)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// RotateSecretKeyHandler
// ---------------------------------------------------------------------------

func TestRotateSecretKey_ReturnsNewKey(t *testing.T) {
	mock, r := newUserRouter(t)

	mock.ExpectExec(`UPDATE team_users SET secret_key = \$2, updated_at = \$3 WHERE id = \$1`).
		WithArgs("tu-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := httptest.NewRequest(http.MethodPatch, "/user/me/rotate-secret-key", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (body %s)", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	key, _ := body["secret_key"].(string)
	if key == "" || key == "sk-current" {
		t.Errorf("expected a freshly generated secret key, got %q", key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}
