package flows

// Deps groups the dependency sets of every flow. The Engine builds it once.
type Deps struct {
	Issue     IssueDeps
	Login     LoginDeps
	TwoFactor TwoFactorDeps
	Refresh   RefreshDeps
	Logout    LogoutDeps
}
