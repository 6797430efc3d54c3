// backend/src/services/price_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/config"
	"github.com/username/tradefolio/backend/src/logger"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				Symbol             string  `json:"symbol"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"chart"`
}

type priceServiceImpl struct {
	httpClient    http.Client
	quoteCache    *cache.Cache
	limiter       *rate.Limiter
	isInitialized bool
	crumb         string
	mu            sync.Mutex
}

func NewPriceService(quoteCache *cache.Cache) PriceService {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	client := http.Client{
		Jar:     jar,
		Timeout: config.Cfg.PriceFetchTimeout,
	}

	s := &priceServiceImpl{
		httpClient: client,
		quoteCache: quoteCache,
		limiter:    rate.NewLimiter(rate.Limit(config.Cfg.PriceFetchRate), config.Cfg.PriceFetchBurst),
	}

	go s.initializeYahooSession()

	return s
}

func (s *priceServiceImpl) initializeYahooSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized && s.crumb != "" {
		return
	}

	logger.L.Info("Initializing Yahoo Finance session and fetching Crumb...")

	req1, _ := http.NewRequest("GET", "https://fc.yahoo.com", nil)
	req1.Header.Set("User-Agent", userAgent)
	resp1, err := s.httpClient.Do(req1)
	if err == nil {
		io.Copy(io.Discard, resp1.Body)
		resp1.Body.Close()
	}

	req2, _ := http.NewRequest("GET", "https://finance.yahoo.com", nil)
	req2.Header.Set("User-Agent", userAgent)
	resp2, err := s.httpClient.Do(req2)
	if err == nil {
		io.Copy(io.Discard, resp2.Body)
		resp2.Body.Close()
	}

	req3, _ := http.NewRequest("GET", "https://query1.finance.yahoo.com/v1/test/getcrumb", nil)
	req3.Header.Set("User-Agent", userAgent)
	resp3, err := s.httpClient.Do(req3)
	if err != nil {
		logger.L.Error("Failed to fetch crumb", "error", err)
		return
	}
	defer resp3.Body.Close()

	if resp3.StatusCode == http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp3.Body)
		s.crumb = string(bodyBytes)
		s.isInitialized = true
		logger.L.Info("Yahoo session initialized successfully")
	} else {
		logger.L.Warn("Failed to fetch crumb", "status", resp3.Status)
	}
}

func (s *priceServiceImpl) ensureSession() {
	s.mu.Lock()
	needsInit := !s.isInitialized || s.crumb == ""
	s.mu.Unlock()

	if needsInit {
		s.initializeYahooSession()
	}
}

// GetQuotes resolves quotes for the given tickers. Every requested ticker is
// present in the result; symbols that cannot be resolved come back with
// status UNAVAILABLE, and one bad symbol never aborts the rest.
func (s *priceServiceImpl) GetQuotes(ctx context.Context, tickers []string) map[string]QuoteInfo {
	s.ensureSession()

	results := make(map[string]QuoteInfo, len(tickers))
	seen := make(map[string]bool, len(tickers))
	for _, ticker := range tickers {
		if seen[ticker] {
			continue
		}
		seen[ticker] = true
		results[ticker] = QuoteInfo{Status: QuoteStatusUnavailable}

		cacheKey := "quote:" + strings.ToUpper(ticker)
		if cached, found := s.quoteCache.Get(cacheKey); found {
			if q, ok := cached.(QuoteInfo); ok {
				results[ticker] = q
				continue
			}
		}

		if err := s.limiter.Wait(ctx); err != nil {
			logger.L.Warn("Quote fetch canceled while waiting for rate limiter", "ticker", ticker, "error", err)
			return results
		}

		quote, err := s.fetchQuote(ctx, ticker)
		if err != nil {
			logger.L.Warn("Could not get quote for ticker", "ticker", ticker, "error", err)
			continue
		}
		results[ticker] = quote
		s.quoteCache.Set(cacheKey, quote, cache.DefaultExpiration)
	}
	return results
}

func (s *priceServiceImpl) fetchQuote(ctx context.Context, ticker string) (QuoteInfo, error) {
	quoteURL := fmt.Sprintf("https://query1.finance.yahoo.com/v8/finance/chart/%s?crumb=%s", ticker, s.crumb)
	req, err := http.NewRequestWithContext(ctx, "GET", quoteURL, nil)
	if err != nil {
		return QuoteInfo{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return QuoteInfo{}, fmt.Errorf("failed to call Yahoo chart API: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == 401 {
		s.mu.Lock()
		s.isInitialized = false
		s.mu.Unlock()
		return QuoteInfo{}, fmt.Errorf("status 401 (Unauthorized) - Crumb invalid")
	}
	if resp.StatusCode != http.StatusOK {
		return QuoteInfo{}, fmt.Errorf("yahoo chart API returned non-OK status %d", resp.StatusCode)
	}
	var chartData yahooChartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chartData); err != nil {
		return QuoteInfo{}, fmt.Errorf("failed to decode Yahoo chart response: %w", err)
	}
	if chartData.Chart.Error != nil {
		return QuoteInfo{}, fmt.Errorf("yahoo chart API returned an error: %v", chartData.Chart.Error)
	}
	if len(chartData.Chart.Result) == 0 || chartData.Chart.Result[0].Meta.RegularMarketPrice == 0 {
		return QuoteInfo{}, fmt.Errorf("no price data found")
	}

	meta := chartData.Chart.Result[0].Meta
	price := decimal.NewFromFloat(meta.RegularMarketPrice)
	quote := QuoteInfo{
		Status: QuoteStatusOK,
		Price:  price,
	}
	if meta.ChartPreviousClose > 0 {
		prev := decimal.NewFromFloat(meta.ChartPreviousClose)
		quote.Change = price.Sub(prev)
		quote.ChangePercent = quote.Change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return quote, nil
}
