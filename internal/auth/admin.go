package auth

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials - неверное имя пользователя или пароль
var ErrInvalidCredentials = errors.New("invalid credentials")

// User - учётная запись, которой выдаётся токен
type User struct {
	Username string
	IsAdmin  bool
}

// AdminAccount - единственная учётная запись администратора из конфигурации
type AdminAccount struct {
	username     string
	passwordHash string
}

// NewAdminAccount создаёт учётную запись. Пустой hash отключает вход.
func NewAdminAccount(username, passwordHash string) *AdminAccount {
	return &AdminAccount{username: strings.ToLower(username), passwordHash: passwordHash}
}

// Enabled сообщает, задан ли пароль администратора
func (a *AdminAccount) Enabled() bool {
	return a.passwordHash != ""
}

// Authenticate проверяет пару имя/пароль
func (a *AdminAccount) Authenticate(username, password string) (*User, error) {
	if !a.Enabled() {
		return nil, ErrInvalidCredentials
	}
	nameOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(username)), []byte(a.username)) == 1
	if !CheckPassword(a.passwordHash, password) || !nameOK {
		return nil, ErrInvalidCredentials
	}
	return &User{Username: a.username, IsAdmin: true}, nil
}

// HashPassword returns a bcrypt hash of the password using DefaultCost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hash string, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
