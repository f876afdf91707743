package thingspeak

import (
	"errors"
	"net/http"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

const (
	DefaultURL     = "https://api.thingspeak.com/update"
	DefaultTimeout = 10 * time.Second
)

var ErrBadStatus = errors.New("thingspeak returned an error status")

// Client pushes channel updates to the ThingSpeak write API.
type Client struct {
	url        string
	apiKey     string
	httpClient *http.Client
	log        *jww.Notepad
}
