package bonkbot

import (
	"context"
	"net/url"
	"regexp"
	"strconv"

	"github.com/Safizapi/bonk-bot/bonkmap"
)

// catalogEntry is one map row in a catalog search reply.
type catalogEntry struct {
	ID            int    `json:"id"`
	LevelData     string `json:"leveldata"`
	Name          string `json:"name"`
	AuthorName    string `json:"authorname"`
	PublishedDate string `json:"publisheddate"`
	CreationDate  string `json:"creationdate"`
	Published     int    `json:"published"`
	VotesUp       int    `json:"vu"`
	VotesDown     int    `json:"vd"`
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// FetchMaps searches the public map catalog by name and author.
func (b *Bot) FetchMaps(ctx context.Context, request string, byName, byAuthor bool) ([]*bonkmap.CatalogMap, error) {
	form := url.Values{
		"searchauthor":  {boolParam(byAuthor)},
		"searchmapname": {boolParam(byName)},
		"searchsort":    {"best"},
		"searchstring":  {request},
		"startingfrom":  {"0"},
	}
	var out struct {
		Maps []catalogEntry `json:"maps"`
	}
	if err := b.api.postForm(ctx, mapSearchPath, form, &out); err != nil {
		return nil, err
	}

	maps := make([]*bonkmap.CatalogMap, 0, len(out.Maps))
	for _, m := range out.Maps {
		maps = append(maps, &bonkmap.CatalogMap{
			MapID:         m.ID,
			MapName:       m.Name,
			AuthorName:    m.AuthorName,
			Blob:          m.LevelData,
			PublishedDate: m.PublishedDate,
			VotesUp:       m.VotesUp,
			VotesDown:     m.VotesDown,
		})
	}
	return maps, nil
}

// legacyMapRow matches one map in the legacy catalog's reply, which is
// a single url-encoded query string per row rather than JSON.
var legacyMapRow = regexp.MustCompile(
	`mapid\d*=(\d*)&mapname\d*=([^-]*)&creationdate\d*=([^&]*)&modifieddate\d*=([^&]*)` +
		`&thumbsup\d*=(\d*)&thumbsdown\d*=(\d*)&score\d*=\d*&authorname\d*=([^&]*)&leveldata\d*=([^&]*)`)

// FetchLegacyMaps searches the original game's map catalog.
func (b *Bot) FetchLegacyMaps(ctx context.Context, request string, byName, byAuthor bool) ([]*bonkmap.LegacyMap, error) {
	form := url.Values{
		"searchsort":    {"ctr"},
		"searchauthor":  {boolParam(byAuthor)},
		"searchmapname": {boolParam(byName)},
		"startingfrom":  {"0"},
		"searchstring":  {request},
	}
	var out struct {
		Maps string `json:"maps"`
	}
	if err := b.api.postForm(ctx, legacyMapPath, form, &out); err != nil {
		return nil, err
	}

	decoded, err := url.QueryUnescape(out.Maps)
	if err != nil {
		return nil, err
	}

	rows := legacyMapRow.FindAllStringSubmatch(decoded, -1)
	maps := make([]*bonkmap.LegacyMap, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.Atoi(row[1])
		if err != nil {
			continue
		}
		up, _ := strconv.Atoi(row[5])
		down, _ := strconv.Atoi(row[6])
		maps = append(maps, &bonkmap.LegacyMap{
			MapID:        id,
			MapName:      row[2],
			AuthorName:   row[7],
			Blob:         row[8],
			CreationDate: row[3],
			ModifiedDate: row[4],
			VotesUp:      up,
			VotesDown:    down,
		})
	}
	return maps, nil
}

// FetchOwnMaps returns the maps created on the account.
func (b *Bot) FetchOwnMaps(ctx context.Context) ([]*bonkmap.AccountMap, error) {
	form := url.Values{
		"token":        {b.Token()},
		"startingfrom": {"0"},
	}
	var out struct {
		Maps []catalogEntry `json:"maps"`
	}
	if err := b.api.postForm(ctx, ownMapsPath, form, &out); err != nil {
		return nil, err
	}

	maps := make([]*bonkmap.AccountMap, 0, len(out.Maps))
	for _, m := range out.Maps {
		maps = append(maps, bonkmap.NewAccountMap(b, bonkmap.AccountMap{
			MapID:        m.ID,
			MapName:      m.Name,
			AuthorName:   b.username,
			Blob:         m.LevelData,
			CreationDate: m.CreationDate,
			Published:    m.Published == 1,
			VotesUp:      m.VotesUp,
			VotesDown:    m.VotesDown,
		}))
	}
	return maps, nil
}

// FetchFavoriteMaps returns the account's favorited catalog maps.
func (b *Bot) FetchFavoriteMaps(ctx context.Context) ([]*bonkmap.CatalogMap, error) {
	form := url.Values{
		"token":        {b.Token()},
		"startingfrom": {"0"},
	}
	var out struct {
		Maps []catalogEntry `json:"maps"`
	}
	if err := b.api.postForm(ctx, favMapsPath, form, &out); err != nil {
		return nil, err
	}

	maps := make([]*bonkmap.CatalogMap, 0, len(out.Maps))
	for _, m := range out.Maps {
		maps = append(maps, &bonkmap.CatalogMap{
			MapID:         m.ID,
			MapName:       m.Name,
			AuthorName:    m.AuthorName,
			Blob:          m.LevelData,
			PublishedDate: m.PublishedDate,
			VotesUp:       m.VotesUp,
			VotesDown:     m.VotesDown,
		})
	}
	return maps, nil
}

// DeleteMap removes one of the account's own maps.
func (b *Bot) DeleteMap(ctx context.Context, mapID int) error {
	form := url.Values{
		"token": {b.Token()},
		"mapid": {strconv.Itoa(mapID)},
	}
	return b.api.postForm(ctx, mapDeletePath, form, nil)
}
