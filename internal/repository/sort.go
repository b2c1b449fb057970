package repository

import (
    "errors"
    "strings"
)

// ErrInvalidSort is returned when a sort key names a column that is not
// in the allow list.
var ErrInvalidSort = errors.New("invalid sort key")

// orderBy turns a sort key such as "-scheduled_at" into an ORDER BY
// clause.  A leading '-' sorts descending.  Only columns present in
// allowed are accepted; the map value is the qualified column name.
func orderBy(key string, allowed map[string]string, def string) (string, error) {
    key = strings.TrimSpace(key)
    if key == "" {
        key = def
    }
    dir := "ASC"
    if strings.HasPrefix(key, "-") {
        dir = "DESC"
        key = key[1:]
    } else if strings.HasPrefix(key, "+") {
        key = key[1:]
    }
    col, ok := allowed[key]
    if !ok {
        return "", ErrInvalidSort
    }
    return "ORDER BY " + col + " " + dir + ", id " + dir, nil
}
