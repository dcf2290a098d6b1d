// File: internal/auth/selectors.go
package auth

// Candidate selector chains for the login form, ordered most-specific first.
// The first selector that resolves to a visible element wins; platforms
// rename classes often enough that a single selector is never trusted.
var (
	emailSelectors = []string{
		"input[type='email']",
		"input[name='email']",
		"//input[@placeholder='Email' or @placeholder='email']",
	}

	passwordSelectors = []string{
		"input[type='password']",
		"input[name='password']",
		"//input[@placeholder='Password' or @placeholder='password']",
	}

	submitSelectors = []string{
		"button[type='submit']",
		"//button[contains(., 'Log In') or contains(., 'Login')]",
		"//input[@type='submit']",
		"//button[contains(@class, 'login')]",
		"//button[contains(@class, 'submit')]",
	}
)
