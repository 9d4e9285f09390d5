package logging

import "regexp"

const (
	dsnPasswordPattern = `(://[^/:@\s]+):([^@/\s]+)@`
	passwordPattern    = `(?i)(password|passwd|pwd|pgpassword)(\s*[:=]\s*['"]?)([^\s'"&,;]+)`
	tokenPattern       = `(?i)(token|api_key|secret)(\s*[:=]\s*['"]?)([A-Za-z0-9=/_\-\+\.]{8,})`
	bearerPattern      = `(?i)(bearer\s+)([A-Za-z0-9=/_\-\+\.]+)`
)

var (
	dsnPasswordRegexp = regexp.MustCompile(dsnPasswordPattern)
	passwordRegexp    = regexp.MustCompile(passwordPattern)
	tokenRegexp       = regexp.MustCompile(tokenPattern)
	bearerRegexp      = regexp.MustCompile(bearerPattern)
)

type secretMasker string

func (s secretMasker) dsnPassword() secretMasker {
	return secretMasker(dsnPasswordRegexp.ReplaceAllString(string(s), "$1:****@"))
}

func (s secretMasker) password() secretMasker {
	return secretMasker(passwordRegexp.ReplaceAllString(string(s), "$1${2}****"))
}

func (s secretMasker) token() secretMasker {
	return secretMasker(tokenRegexp.ReplaceAllString(string(s), "$1${2}****"))
}

func (s secretMasker) bearer() secretMasker {
	return secretMasker(bearerRegexp.ReplaceAllString(string(s), "$1****"))
}

// MaskSecrets replaces passwords and API tokens found in text with ****.
func MaskSecrets(text string) string {
	return string(secretMasker(text).dsnPassword().password().token().bearer())
}
