package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/fee-portal-api/internal/models"
	appErrors "github.com/noah-isme/fee-portal-api/pkg/errors"
)

type mockAdminAccounts struct {
	admins map[string]models.Admin
}

func (m *mockAdminAccounts) FindByAdminID(ctx context.Context, adminID string) (*models.Admin, error) {
	for _, a := range m.admins {
		if a.AdminID == adminID {
			return &a, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminAccounts) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	if a, ok := m.admins[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdminAccounts) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	a, ok := m.admins[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.PasswordHash = passwordHash
	m.admins[id] = a
	return nil
}

type mockStudentAccounts struct {
	students map[string]models.Student
}

func (m *mockStudentAccounts) FindByStudentID(ctx context.Context, studentID string) (*models.Student, error) {
	for _, s := range m.students {
		if s.StudentID == studentID {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentAccounts) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentAccounts) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	s, ok := m.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.PasswordHash = passwordHash
	m.students[id] = s
	return nil
}

type mockSessions struct {
	tokens     map[string]models.RefreshToken
	auditCount int
}

func (m *mockSessions) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.tokens == nil {
		m.tokens = make(map[string]models.RefreshToken)
	}
	m.tokens[token.Token] = *token
	return nil
}

func (m *mockSessions) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSessions) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for value, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
			m.tokens[value] = t
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockSessions) RevokeAccountRefreshTokens(ctx context.Context, accountID string) error {
	now := time.Now().UTC()
	for value, t := range m.tokens {
		if t.AccountID == accountID && !t.Revoked {
			t.Revoked = true
			t.RevokedAt = &now
			m.tokens[value] = t
		}
	}
	return nil
}

func (m *mockSessions) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditCount++
	return nil
}

func (m *mockSessions) activeTokens(accountID string) int {
	count := 0
	for _, t := range m.tokens {
		if t.AccountID == accountID && !t.Revoked {
			count++
		}
	}
	return count
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newAuthService(t *testing.T, admins *mockAdminAccounts, students *mockStudentAccounts, sessions *mockSessions) *AuthService {
	t.Helper()
	return NewAuthService(admins, students, sessions, nil, nil, AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "fee-portal-api",
		Audience:           []string{"fee-portal"},
	})
}

func TestLoginStudentIssuesTokenPair(t *testing.T) {
	students := &mockStudentAccounts{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", Name: "Asha", PasswordHash: hashPassword(t, "secret123")},
	}}
	sessions := &mockSessions{}
	svc := newAuthService(t, &mockAdminAccounts{}, students, sessions)

	resp, err := svc.LoginStudent(context.Background(), models.StudentLoginRequest{StudentID: "S123", Password: "secret123"})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleStudent, resp.Account.Role)
	assert.Equal(t, 1, sessions.activeTokens("stu-1"))

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", claims.AccountID)
	assert.Equal(t, "S123", claims.LoginID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginStudentWrongPasswordAndUnknownIDLookTheSame(t *testing.T) {
	students := &mockStudentAccounts{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", PasswordHash: hashPassword(t, "secret123")},
	}}
	svc := newAuthService(t, &mockAdminAccounts{}, students, &mockSessions{})

	_, wrongPass := svc.LoginStudent(context.Background(), models.StudentLoginRequest{StudentID: "S123", Password: "nope"})
	_, unknownID := svc.LoginStudent(context.Background(), models.StudentLoginRequest{StudentID: "S999", Password: "secret123"})

	require.Error(t, wrongPass)
	require.Error(t, unknownID)
	assert.Equal(t, appErrors.FromError(wrongPass).Code, appErrors.FromError(unknownID).Code)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(wrongPass).Code)
	assert.Equal(t, appErrors.FromError(wrongPass).Message, appErrors.FromError(unknownID).Message)
}

func TestLoginAdminDefaultsRole(t *testing.T) {
	admins := &mockAdminAccounts{admins: map[string]models.Admin{
		"adm-1": {ID: "adm-1", AdminID: "A100", Name: "Ravi", PasswordHash: hashPassword(t, "adminpass")},
	}}
	svc := newAuthService(t, admins, &mockStudentAccounts{}, &mockSessions{})

	resp, err := svc.LoginAdmin(context.Background(), models.AdminLoginRequest{AdminID: "A100", Password: "adminpass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.Account.Role)
}

func TestRefreshTokenRotates(t *testing.T) {
	students := &mockStudentAccounts{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", PasswordHash: hashPassword(t, "secret123")},
	}}
	sessions := &mockSessions{}
	svc := newAuthService(t, &mockAdminAccounts{}, students, sessions)

	login, err := svc.LoginStudent(context.Background(), models.StudentLoginRequest{StudentID: "S123", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)

	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, sessions.tokens[login.RefreshToken].Revoked)
	assert.Equal(t, 1, sessions.activeTokens("stu-1"))

	// A rotated-out token must not be accepted a second time.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestRefreshTokenExpired(t *testing.T) {
	sessions := &mockSessions{tokens: map[string]models.RefreshToken{
		"stale": {ID: "tok-1", AccountID: "stu-1", Role: models.RoleStudent, Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
	}}
	svc := newAuthService(t, &mockAdminAccounts{}, &mockStudentAccounts{}, sessions)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogoutRejectsForeignToken(t *testing.T) {
	sessions := &mockSessions{tokens: map[string]models.RefreshToken{
		"owned": {ID: "tok-1", AccountID: "stu-1", Role: models.RoleStudent, Token: "owned", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}}
	svc := newAuthService(t, &mockAdminAccounts{}, &mockStudentAccounts{}, sessions)

	err := svc.Logout(context.Background(), "owned", "stu-2", "", "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.False(t, sessions.tokens["owned"].Revoked)

	require.NoError(t, svc.Logout(context.Background(), "owned", "stu-1", "", ""))
	assert.True(t, sessions.tokens["owned"].Revoked)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	students := &mockStudentAccounts{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", PasswordHash: hashPassword(t, "oldpass")},
	}}
	sessions := &mockSessions{tokens: map[string]models.RefreshToken{
		"a": {ID: "tok-1", AccountID: "stu-1", Role: models.RoleStudent, Token: "a", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		"b": {ID: "tok-2", AccountID: "stu-1", Role: models.RoleStudent, Token: "b", ExpiresAt: time.Now().UTC().Add(time.Hour)},
	}}
	svc := newAuthService(t, &mockAdminAccounts{}, students, sessions)

	claims := &models.JWTClaims{AccountID: "stu-1", LoginID: "S123", Role: models.RoleStudent}
	err := svc.ChangePassword(context.Background(), claims, models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass1"})
	require.NoError(t, err)

	assert.Equal(t, 0, sessions.activeTokens("stu-1"))
	stored := students.students["stu-1"]
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpass1")))
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	students := &mockStudentAccounts{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", PasswordHash: hashPassword(t, "oldpass")},
	}}
	svc := newAuthService(t, &mockAdminAccounts{}, students, &mockSessions{})

	claims := &models.JWTClaims{AccountID: "stu-1", Role: models.RoleStudent}
	err := svc.ChangePassword(context.Background(), claims, models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "newpass1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	students := &mockStudentAccounts{students: map[string]models.Student{
		"stu-1": {ID: "stu-1", StudentID: "S123", PasswordHash: hashPassword(t, "secret123")},
	}}
	svc := newAuthService(t, &mockAdminAccounts{}, students, &mockSessions{})

	resp, err := svc.LoginStudent(context.Background(), models.StudentLoginRequest{StudentID: "S123", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(resp.AccessToken + "x")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
