package apiframework

// version is injected at build time via -ldflags "-X".
var version = "dev"

// AboutServer is the body of GET /version.
type AboutServer struct {
	Version        string `json:"version"`
	NodeInstanceID string `json:"nodeInstanceID"`
}

func GetVersion() string {
	return version
}
