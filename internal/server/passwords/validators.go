package passwords

import (
	"bufio"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const (
	MinLength     = 8
	MaxSimilarity = 0.7
)

//go:embed common_passwords.txt
var commonPasswordsFile string

var (
	commonOnce      sync.Once
	commonPasswords map[string]struct{}
)

var nonWord = regexp.MustCompile(`\W+`)

// Attributes are the user fields a password must not resemble.
type Attributes struct {
	Email     string
	FirstName string
	LastName  string
}

// Validate runs every strength rule and returns the failure messages in
// rule order. An empty result means the password is acceptable.
func Validate(password string, attrs Attributes) []string {
	var errs []string

	if msg := checkSimilarity(password, attrs); msg != "" {
		errs = append(errs, msg)
	}
	if utf8.RuneCountInString(password) < MinLength {
		errs = append(errs, fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinLength))
	}
	if isCommon(password) {
		errs = append(errs, "This password is too common.")
	}
	if isNumeric(password) {
		errs = append(errs, "This password is entirely numeric.")
	}

	return errs
}

func checkSimilarity(password string, attrs Attributes) string {
	password = strings.ToLower(password)

	fields := []struct {
		value, name string
	}{
		{attrs.Email, "Email address"},
		{attrs.FirstName, "First name"},
		{attrs.LastName, "Last name"},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		value := strings.ToLower(f.value)
		parts := append(nonWord.Split(value, -1), value)
		for _, part := range parts {
			if part == "" || exceedsLengthRatio(password, part) {
				continue
			}
			if quickRatio(password, part) >= MaxSimilarity {
				return fmt.Sprintf("The password is too similar to the %s.", f.name)
			}
		}
	}
	return ""
}

// exceedsLengthRatio skips attribute parts too short to be meaningfully
// similar to a long password.
func exceedsLengthRatio(password, value string) bool {
	pwdLen := utf8.RuneCountInString(password)
	valueLen := utf8.RuneCountInString(value)
	bound := MaxSimilarity / 2 * float64(pwdLen)
	return pwdLen >= 10*valueLen && float64(valueLen) < bound
}

// quickRatio is an upper bound on the similarity of a and b: twice the
// size of the rune multiset intersection over the total length.
func quickRatio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}

	avail := make(map[rune]int)
	for _, r := range b {
		avail[r]++
	}
	matches := 0
	for _, r := range a {
		if avail[r] > 0 {
			avail[r]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(total)
}

func isNumeric(password string) bool {
	if password == "" {
		return false
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isCommon(password string) bool {
	commonOnce.Do(func() {
		commonPasswords = make(map[string]struct{})
		sc := bufio.NewScanner(strings.NewReader(commonPasswordsFile))
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				commonPasswords[line] = struct{}{}
			}
		}
	})
	_, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]
	return ok
}
