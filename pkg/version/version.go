package version

const (
	// AppName is the application name, also used for the app data directory
	AppName = "idbadge-scanner"
	// AppTitle is the human readable application name
	AppTitle = "ID Badge Scanner"
	// Version is the current version
	Version = "0.3.0"
	// Author is the application author
	Author = "NeuraXmy"
)

// GetFullName returns the title with version
func GetFullName() string {
	return AppTitle + " v" + Version
}
