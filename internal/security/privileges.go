package security

import (
	"fmt"
	"os"
	"runtime"

	"dbmanager/internal/logger"
)

// PrivilegeChecker checks for elevated privileges. File stores written as
// root cannot be read by the application server afterwards.
type PrivilegeChecker struct {
	log       logger.Logger
	getuid    func() int
	getuser   func() string
	isWindows bool
}

// NewPrivilegeChecker creates a new privilege checker
func NewPrivilegeChecker(log logger.Logger) *PrivilegeChecker {
	return &PrivilegeChecker{
		log:       log,
		getuid:    os.Getuid,
		getuser:   GetCurrentUser,
		isWindows: runtime.GOOS == "windows",
	}
}

// CheckAndWarn refuses to run with elevated privileges unless allowRoot is set
func (pc *PrivilegeChecker) CheckAndWarn(allowRoot bool) error {
	isRoot, user := pc.isRunningAsRoot()

	if !isRoot {
		pc.log.Debug("Running as non-privileged user", "user", user)
		return nil
	}

	pc.log.Warn("Running with elevated privileges; file stores will be owned by " + user)
	if !allowRoot {
		return fmt.Errorf("running as %s is a security risk, run as the application user or pass --allow-root", user)
	}
	pc.log.Warn("Proceeding with root privileges (--allow-root specified)")
	return nil
}

// isRunningAsRoot checks if current process has root/admin privileges
func (pc *PrivilegeChecker) isRunningAsRoot() (bool, string) {
	user := pc.getuser()
	if pc.isWindows {
		// simplified check, no Windows token inspection
		return user == "Administrator" || user == "SYSTEM", user
	}
	return pc.getuid() == 0 || user == "root", user
}
