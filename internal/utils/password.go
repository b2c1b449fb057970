package utils

import (
    "errors"

    "golang.org/x/crypto/bcrypt"
)

// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password longer than 72 bytes")

// HashPassword hashes plain with bcrypt.  cost is clamped to the range
// bcrypt accepts, so a misconfigured BCRYPT_COST never fails sign-up.
func HashPassword(plain string, cost int) (string, error) {
    if len(plain) > 72 {
        return "", ErrPasswordTooLong
    }
    switch {
    case cost < bcrypt.MinCost:
        cost = bcrypt.MinCost
    case cost > bcrypt.MaxCost:
        cost = bcrypt.MaxCost
    }
    b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
    if err != nil {
        return "", err
    }
    return string(b), nil
}

// VerifyPassword reports whether plain matches the stored hash.  An
// empty hash (an account without a password) never matches.
func VerifyPassword(hash, plain string) bool {
    if hash == "" {
        return false
    }
    return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
