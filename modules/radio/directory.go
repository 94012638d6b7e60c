package radio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var errLiveStream = errors.New("radio: live streams are not seekable")

// Station is one entry of the remote station directory.
type Station struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Genre string `json:"genre,omitempty"`
}

// Directory is an HTTP client for the station directory service. The service
// speaks JSON:
//
//	GET {base}/genres              -> ["jazz","rock",...]
//	GET {base}/stations?genre=jazz -> [{"id","name","url","genre"},...]
//	GET {base}/stations?search=q   -> same shape
//	GET {base}/stations/{id}       -> {"id","name","url","genre"}
type Directory struct {
	base   string
	client *http.Client
}

// DirectoryOption configures a Directory.
type DirectoryOption func(*Directory)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) DirectoryOption {
	return func(d *Directory) { d.client = c }
}

// NewDirectory builds a client for the directory service at base.
func NewDirectory(base string, opts ...DirectoryOption) *Directory {
	d := &Directory{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Genres lists the directory's genres.
func (d *Directory) Genres(ctx context.Context) ([]string, error) {
	var genres []string
	if err := d.get(ctx, d.base+"/genres", &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

// Stations lists the stations of one genre.
func (d *Directory) Stations(ctx context.Context, genre string) ([]Station, error) {
	var stations []Station
	u := d.base + "/stations?genre=" + url.QueryEscape(genre)
	if err := d.get(ctx, u, &stations); err != nil {
		return nil, err
	}
	return stations, nil
}

// Search finds stations by name.
func (d *Directory) Search(ctx context.Context, query string) ([]Station, error) {
	var stations []Station
	u := d.base + "/stations?search=" + url.QueryEscape(query)
	if err := d.get(ctx, u, &stations); err != nil {
		return nil, err
	}
	return stations, nil
}

// Resolve turns a play path into a station. A path that already is a stream
// URL passes through untouched; anything else is treated as a station id and
// looked up in the directory.
func (d *Directory) Resolve(ctx context.Context, path string) (Station, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return Station{Name: path, URL: path}, nil
	}
	var station Station
	if err := d.get(ctx, d.base+"/stations/"+url.PathEscape(path), &station); err != nil {
		return Station{}, err
	}
	return station, nil
}

func (d *Directory) get(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("station directory: %s returned %s", u, res.Status)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
