package devauth

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	domainauth "github.com/jemaat/portal/internal/domain/auth"
)

// User is one account known to the dev backend.
type User struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash []byte
}

func (u User) profile() domainauth.Profile {
	return domainauth.Profile{ID: u.ID, DisplayName: u.Name, Email: u.Email, RawRole: u.Role}
}

type usersFile struct {
	Users []struct {
		ID           string `yaml:"id"`
		Name         string `yaml:"name"`
		Email        string `yaml:"email"`
		Role         string `yaml:"role"`
		Password     string `yaml:"password"`
		PasswordHash string `yaml:"password_hash"`
	} `yaml:"users"`
}

// LoadUsersFile reads a YAML users file. Each entry carries either a bcrypt
// password_hash or a plain password that is hashed on load.
func LoadUsersFile(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return ParseUsers(data)
}

// ParseUsers decodes the YAML users document.
func ParseUsers(data []byte) ([]User, error) {
	var uf usersFile
	if err := yaml.Unmarshal(data, &uf); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}

	users := make([]User, 0, len(uf.Users))
	for i, raw := range uf.Users {
		email := strings.ToLower(strings.TrimSpace(raw.Email))
		if email == "" {
			return nil, fmt.Errorf("users[%d]: email is required", i)
		}
		u := User{ID: raw.ID, Name: raw.Name, Email: email, Role: raw.Role}
		if u.ID == "" {
			u.ID = fmt.Sprintf("dev-%d", i+1)
		}

		switch {
		case raw.PasswordHash != "":
			u.PasswordHash = []byte(raw.PasswordHash)
		case raw.Password != "":
			hash, hashErr := bcrypt.GenerateFromPassword([]byte(raw.Password), bcrypt.DefaultCost)
			if hashErr != nil {
				return nil, fmt.Errorf("users[%d]: hash password: %w", i, hashErr)
			}
			u.PasswordHash = hash
		default:
			return nil, fmt.Errorf("users[%d]: password or password_hash is required", i)
		}
		users = append(users, u)
	}
	if len(users) == 0 {
		return nil, errors.New("users file has no users")
	}
	return users, nil
}

// DefaultUsers returns one account per role, all with password "password".
func DefaultUsers() ([]User, error) {
	return ParseUsers([]byte(`
users:
  - id: "1"
    name: Super Admin
    email: superadmin@localhost
    role: superadmin
    password: password
  - id: "2"
    name: Admin Majelis
    email: admin@localhost
    role: admin_majelis
    password: password
  - id: "3"
    name: Jemaat
    email: jemaat@localhost
    role: jemaat
    password: password
`))
}
