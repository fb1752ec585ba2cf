package controllers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/amaumene/towatch/internal/metrics"
	"github.com/amaumene/towatch/internal/models"
	"github.com/amaumene/towatch/internal/services/tmdb"
	"github.com/amaumene/towatch/internal/utils"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
)

const (
	keyPopularMovies  = "popular_movies"
	keyPopularTVShows = "popular_tv"
	keyTrendingMovies = "trending_movies"
	keyTrendingTV     = "trending_tv"

	defaultUsername = "User"
)

// Catalog is the movie/TV metadata source
type Catalog interface {
	PopularMovies(ctx context.Context) ([]tmdb.Movie, error)
	PopularTVShows(ctx context.Context) ([]tmdb.TVShow, error)
	TrendingMovies(ctx context.Context) ([]tmdb.Movie, error)
	TrendingTVShows(ctx context.Context) ([]tmdb.TVShow, error)
	MovieRecommendations(ctx context.Context, movieID int) ([]tmdb.Movie, error)
	TVShowRecommendations(ctx context.Context, showID int) ([]tmdb.TVShow, error)
	PosterURL(path *string) string
}

// Trending holds today's trending movies and TV shows
type Trending struct {
	Movies  []tmdb.Movie  `json:"movies"`
	TVShows []tmdb.TVShow `json:"tvShows"`
}

// DashboardEntry is a catalog entry ready to be displayed and saved
type DashboardEntry struct {
	MediaID     string                `json:"mediaId"`
	Title       string                `json:"title"`
	Overview    string                `json:"overview"`
	PosterURL   string                `json:"posterUrl"`
	VoteAverage float64               `json:"voteAverage"`
	Payload     models.ToWatchPayload `json:"payload"`
}

// Dashboard is the signed-in landing view
type Dashboard struct {
	Username        string           `json:"username"`
	TrendingMovies  []DashboardEntry `json:"trendingMovies"`
	TrendingTVShows []DashboardEntry `json:"trendingTvShows"`
	PopularMovies   []DashboardEntry `json:"popularMovies"`
	PopularTVShows  []DashboardEntry `json:"popularTvShows"`
}

// CatalogController serves catalog lists through an in-memory cache.
// Fetch failures are logged and produce empty lists, which are not cached.
type CatalogController struct {
	client Catalog
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewCatalogController creates a catalog controller caching lists for ttl
func NewCatalogController(client Catalog, ttl time.Duration, logger *logrus.Logger) *CatalogController {
	return &CatalogController{
		client: client,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// CachedLists returns the number of lists currently cached
func (c *CatalogController) CachedLists() int {
	return c.cache.ItemCount()
}

// PopularMovies returns the popular movies list
func (c *CatalogController) PopularMovies(ctx context.Context) []tmdb.Movie {
	return cached(c, ctx, keyPopularMovies, c.client.PopularMovies)
}

// PopularTVShows returns the popular TV shows list
func (c *CatalogController) PopularTVShows(ctx context.Context) []tmdb.TVShow {
	return cached(c, ctx, keyPopularTVShows, c.client.PopularTVShows)
}

// Trending fetches trending movies and TV shows in parallel
func (c *CatalogController) Trending(ctx context.Context) Trending {
	var trending Trending
	var wg conc.WaitGroup
	wg.Go(func() {
		trending.Movies = cached(c, ctx, keyTrendingMovies, c.client.TrendingMovies)
	})
	wg.Go(func() {
		trending.TVShows = cached(c, ctx, keyTrendingTV, c.client.TrendingTVShows)
	})
	wg.Wait()
	return trending
}

// MovieRecommendations returns recommendations for a movie
func (c *CatalogController) MovieRecommendations(ctx context.Context, movieID int) []tmdb.Movie {
	return cached(c, ctx, "recommendations_movie_"+strconv.Itoa(movieID), func(ctx context.Context) ([]tmdb.Movie, error) {
		return c.client.MovieRecommendations(ctx, movieID)
	})
}

// TVShowRecommendations returns recommendations for a TV show
func (c *CatalogController) TVShowRecommendations(ctx context.Context, showID int) []tmdb.TVShow {
	return cached(c, ctx, "recommendations_tv_"+strconv.Itoa(showID), func(ctx context.Context) ([]tmdb.TVShow, error) {
		return c.client.TVShowRecommendations(ctx, showID)
	})
}

// Dashboard builds the landing view for a signed-in user
func (c *CatalogController) Dashboard(ctx context.Context, username string) Dashboard {
	if username == "" {
		username = defaultUsername
	}

	var (
		trending      Trending
		popularMovies []tmdb.Movie
		popularShows  []tmdb.TVShow
		wg            conc.WaitGroup
	)
	wg.Go(func() { trending = c.Trending(ctx) })
	wg.Go(func() { popularMovies = c.PopularMovies(ctx) })
	wg.Go(func() { popularShows = c.PopularTVShows(ctx) })
	wg.Wait()

	return Dashboard{
		Username:        username,
		TrendingMovies:  c.movieEntries(trending.Movies),
		TrendingTVShows: c.showEntries(trending.TVShows),
		PopularMovies:   c.movieEntries(popularMovies),
		PopularTVShows:  c.showEntries(popularShows),
	}
}

// Refresh drops the cached lists and fetches them again
func (c *CatalogController) Refresh(ctx context.Context) {
	for _, key := range []string{keyPopularMovies, keyPopularTVShows, keyTrendingMovies, keyTrendingTV} {
		c.cache.Delete(key)
	}

	var wg conc.WaitGroup
	wg.Go(func() { c.PopularMovies(ctx) })
	wg.Go(func() { c.PopularTVShows(ctx) })
	wg.Go(func() { c.Trending(ctx) })
	wg.Wait()

	c.logger.WithField("cached_lists", c.cache.ItemCount()).Info("Catalog cache refreshed")
}

func (c *CatalogController) movieEntries(movies []tmdb.Movie) []DashboardEntry {
	entries := make([]DashboardEntry, 0, len(movies))
	for _, m := range movies {
		entries = append(entries, c.entry(models.MediaTypeMovie, m.ID, m.Title, m.Overview, m.PosterPath, m.ReleaseDate, m.VoteAverage))
	}
	return entries
}

func (c *CatalogController) showEntries(shows []tmdb.TVShow) []DashboardEntry {
	entries := make([]DashboardEntry, 0, len(shows))
	for _, s := range shows {
		entries = append(entries, c.entry(models.MediaTypeTV, s.ID, s.Name, s.Overview, s.PosterPath, s.FirstAirDate, s.VoteAverage))
	}
	return entries
}

func (c *CatalogController) entry(mediaType models.MediaType, id int, title, overview string, posterPath *string, date string, vote float64) DashboardEntry {
	// The saved poster stays null when TMDB has none; the placeholder is display-only
	var poster *string
	if posterPath != nil && *posterPath != "" {
		url := c.client.PosterURL(posterPath)
		poster = &url
	}

	item := models.ToWatchItem{
		MediaID: models.NewMediaID(mediaType, id),
		Type:    mediaType,
		Title:   title,
		Poster:  poster,
		Year:    utils.ParseYear(date),
		TMDBID:  id,
	}

	return DashboardEntry{
		MediaID:     item.MediaID,
		Title:       title,
		Overview:    overview,
		PosterURL:   c.client.PosterURL(posterPath),
		VoteAverage: vote,
		Payload:     models.NewToWatchPayload(item),
	}
}

func cached[T any](c *CatalogController, ctx context.Context, key string, fetch func(context.Context) ([]T, error)) []T {
	if v, ok := c.cache.Get(key); ok {
		metrics.CatalogCacheHitsTotal.WithLabelValues(listLabel(key)).Inc()
		return v.([]T)
	}

	items, err := fetch(ctx)
	if err != nil {
		metrics.CatalogFetchesTotal.WithLabelValues(listLabel(key), "error").Inc()
		if !errors.Is(err, tmdb.ErrDisabled) {
			c.logger.WithError(err).WithField("list", key).Error("Failed to fetch catalog list")
		}
		return []T{}
	}

	metrics.CatalogFetchesTotal.WithLabelValues(listLabel(key), "ok").Inc()
	c.cache.Set(key, items, cache.DefaultExpiration)
	return items
}

// listLabel keeps recommendation ids out of metric labels
func listLabel(key string) string {
	switch key {
	case keyPopularMovies, keyPopularTVShows, keyTrendingMovies, keyTrendingTV:
		return key
	default:
		return "recommendations"
	}
}
