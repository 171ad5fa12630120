package services

import (
	"bytes"
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portr-admin/portr-admin/internal/auth"
	"github.com/portr-admin/portr-admin/internal/auth/github"
	"github.com/portr-admin/portr-admin/internal/crypto"
	"github.com/portr-admin/portr-admin/internal/db/models"
	"github.com/portr-admin/portr-admin/internal/db/repositories"
)

func newUserService(t *testing.T) (*UserService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cipher, err := crypto.NewFieldCipher(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)

	users := repositories.NewUserRepository(db, cipher)
	teams := repositories.NewTeamRepository(db)
	return NewUserService(users, teams), mock
}

var userCols = []string{"id", "email", "first_name", "last_name", "password_hash", "is_superuser", "created_at", "updated_at"}

func userRowWithPassword(t *testing.T, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "alice@example.com", nil, nil, &hash, false, time.Now(), time.Now())
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin_FirstUserRequiresPassword(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err := svc.Login(context.Background(), "admin@example.com", "")
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "password", fieldErr.Field)
	assert.Equal(t, "Password is required for the first user", fieldErr.Message)
}

func TestLogin_FirstUserBootstraps(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO teams").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO team_users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO team_settings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	user, err := svc.Login(context.Background(), "admin@example.com", "p1")
	require.NoError(t, err)
	assert.True(t, user.IsSuperuser, "first user must become superuser")
	assert.Equal(t, "admin@example.com", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLogin_UnknownEmail(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("ghost@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := svc.Login(context.Background(), "ghost@example.com", "p1")
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "email", fieldErr.Field)
	assert.Equal(t, "User does not exist", fieldErr.Message)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(userRowWithPassword(t, "correct"))

	_, err := svc.Login(context.Background(), "alice@example.com", "wrong")
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "password", fieldErr.Field)
	assert.Equal(t, "Password is incorrect", fieldErr.Message)
}

func TestLogin_Success(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(userRowWithPassword(t, "p1"))

	user, err := svc.Login(context.Background(), "alice@example.com", "p1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestLogin_GithubOnlyAccountHasNoPassword(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow("user-1", "alice@example.com", nil, nil, nil, false, time.Now(), time.Now()))

	_, err := svc.Login(context.Background(), "alice@example.com", "anything")
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "password", fieldErr.Field)
}

// ---------------------------------------------------------------------------
// LoginWithGithub
// ---------------------------------------------------------------------------

func TestLoginWithGithub_ExistingUser(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(userRowWithPassword(t, "p1"))
	mock.ExpectExec("INSERT INTO github_users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ghUser := &github.User{ID: 42, Email: "alice@example.com", AvatarURL: "https://a.example.com/42"}
	user, err := svc.LoginWithGithub(context.Background(), ghUser, nil, "gho_token")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
}

func TestLoginWithGithub_UnknownEmailRejected(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("new@example.com").
		WillReturnRows(sqlmock.NewRows(userCols))

	ghUser := &github.User{ID: 42, Email: "new@example.com"}
	_, err := svc.LoginWithGithub(context.Background(), ghUser, nil, "gho_token")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoginWithGithub_FirstUserBootstraps(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO teams").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO team_users").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO team_settings").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("INSERT INTO github_users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	ghUser := &github.User{ID: 42, Email: "admin@example.com"}
	user, err := svc.LoginWithGithub(context.Background(), ghUser, nil, "gho_token")
	require.NoError(t, err)
	assert.True(t, user.IsSuperuser)
}

func TestLoginWithGithub_NoVerifiedEmail(t *testing.T) {
	svc, _ := newUserService(t)

	ghUser := &github.User{ID: 42}
	emails := []github.Email{{Email: "hidden@example.com", Verified: false, Primary: true}}
	_, err := svc.LoginWithGithub(context.Background(), ghUser, emails, "gho_token")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "No verified email found", domainErr.Message)
}

func TestResolveGithubEmail_FallbackOrder(t *testing.T) {
	emails := []github.Email{
		{Email: "secondary@example.com", Verified: true},
		{Email: "primary@example.com", Verified: true, Primary: true},
	}

	email, err := resolveGithubEmail(&github.User{}, emails)
	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", email, "primary verified wins over other verified")

	email, err = resolveGithubEmail(&github.User{}, emails[:1])
	require.NoError(t, err)
	assert.Equal(t, "secondary@example.com", email)

	email, err = resolveGithubEmail(&github.User{Email: "public@example.com"}, emails)
	require.NoError(t, err)
	assert.Equal(t, "public@example.com", email, "profile email wins when public")
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func TestUpdateProfile_NilFieldsKeepValues(t *testing.T) {
	svc, mock := newUserService(t)
	mock.ExpectExec("UPDATE users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	first := "Old"
	user := &models.User{ID: "user-1", Email: "alice@example.com", FirstName: &first}

	newLast := "Lastname"
	require.NoError(t, svc.UpdateProfile(context.Background(), user, nil, &newLast))
	assert.Equal(t, "Old", *user.FirstName, "nil patch field must not clear the value")
	assert.Equal(t, "Lastname", *user.LastName)
}

func TestChangePassword_EmptyRejected(t *testing.T) {
	svc, _ := newUserService(t)
	err := svc.ChangePassword(context.Background(), "user-1", "")
	var domainErr *Error
	require.ErrorAs(t, err, &domainErr)
}
