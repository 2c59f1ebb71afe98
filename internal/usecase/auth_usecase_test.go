package usecase

import (
	"context"
	"net/http"
	"testing"

	"marketplace/internal/config"
	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUserRepo) UpdateAddress(ctx context.Context, userID int64, address string) error {
	args := m.Called(ctx, userID, address)
	return args.Error(0)
}

func testAuthConfig() config.Config {
	return config.Config{Port: "8080", JWTSecret: "test-secret", GoEnv: "dev", ShippingCost: 1000}
}

func TestRegister_Validation(t *testing.T) {
	uc := NewAuthUsecase(testAuthConfig(), new(mockUserRepo))

	_, err := uc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "password1", Name: "a"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "short", Name: "a"})
	requireHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "password1", Name: "  "})
	requireHTTPStatus(t, err, http.StatusBadRequest)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := new(mockUserRepo)
	uc := NewAuthUsecase(testAuthConfig(), users)

	users.On("FindByEmail", mock.Anything, "a@example.com").
		Return(model.User{ID: 1, Email: "a@example.com"}, nil)

	_, err := uc.Register(context.Background(), RegisterInput{Email: "a@example.com", Password: "password1", Name: "a"})
	requireHTTPStatus(t, err, http.StatusConflict)
	users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRegister_HashesPassword(t *testing.T) {
	users := new(mockUserRepo)
	uc := NewAuthUsecase(testAuthConfig(), users)

	users.On("FindByEmail", mock.Anything, "a@example.com").Return(model.User{}, repo.ErrNotFound)

	var created model.User
	users.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		created = *args.Get(1).(*model.User)
	}).Return(nil)

	out, err := uc.Register(context.Background(), RegisterInput{
		Email: "a@example.com", Password: "password1", Name: " alice ", Address: "1-2-3 Test St",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", out.Name)
	assert.Equal(t, "USER", out.Role)
	assert.NotEqual(t, "password1", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("password1")))
}

func TestLogin_WrongPassword(t *testing.T) {
	users := new(mockUserRepo)
	uc := NewAuthUsecase(testAuthConfig(), users)

	hash, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(t, err)
	users.On("FindByEmail", mock.Anything, "a@example.com").
		Return(model.User{ID: 1, Email: "a@example.com", PasswordHash: string(hash), IsActive: true}, nil)

	_, err = uc.Login(context.Background(), "a@example.com", "wrong-password")
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	users := new(mockUserRepo)
	uc := NewAuthUsecase(testAuthConfig(), users)

	users.On("FindByEmail", mock.Anything, "nobody@example.com").Return(model.User{}, repo.ErrNotFound)

	_, err := uc.Login(context.Background(), "nobody@example.com", "password1")
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestLogin_InactiveUser(t *testing.T) {
	users := new(mockUserRepo)
	uc := NewAuthUsecase(testAuthConfig(), users)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	users.On("FindByEmail", mock.Anything, "a@example.com").
		Return(model.User{ID: 1, PasswordHash: string(hash), IsActive: false}, nil)

	_, err := uc.Login(context.Background(), "a@example.com", "password1")
	requireHTTPStatus(t, err, http.StatusUnauthorized)
}

// tokenにsub/roleが入り、設定のシークレットで検証できる
func TestLogin_IssuesVerifiableToken(t *testing.T) {
	users := new(mockUserRepo)
	cfg := testAuthConfig()
	uc := NewAuthUsecase(cfg, users)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	users.On("FindByEmail", mock.Anything, "a@example.com").
		Return(model.User{ID: 42, Email: "a@example.com", Name: "alice", Role: model.RoleAdmin, PasswordHash: string(hash), IsActive: true}, nil)

	out, err := uc.Login(context.Background(), "a@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, int64(42), out.User.ID)
	assert.Equal(t, 900, out.ExpiresIn)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(out.AccessToken, claims, func(tok *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "ADMIN", claims["role"])
}

func TestUpdateAddress(t *testing.T) {
	users := new(mockUserRepo)
	uc := NewAuthUsecase(testAuthConfig(), users)

	_, err := uc.UpdateAddress(context.Background(), 1, "   ")
	requireHTTPStatus(t, err, http.StatusBadRequest)

	users.On("UpdateAddress", mock.Anything, int64(1), "9-9-9 New St").Return(nil)
	users.On("FindByID", mock.Anything, int64(1)).
		Return(model.User{ID: 1, Name: "alice", Address: "9-9-9 New St"}, nil)

	out, err := uc.UpdateAddress(context.Background(), 1, " 9-9-9 New St ")
	require.NoError(t, err)
	assert.Equal(t, "9-9-9 New St", out.Address)
}
