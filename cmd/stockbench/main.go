// Command stockbench проверяет под конкурентной нагрузкой, что API не продаёт больше остатка:
// создаёт товар с заданным остатком, параллельно создаёт заказы и добавляет в каждый одну единицу.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

type config struct {
	addr        string
	stock       int
	orders      int
	concurrency int
	timeout     time.Duration
	username    string
	password    string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config

	fs := flag.NewFlagSet("stockbench", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "http://localhost:8080", "API base URL")
	fs.IntVar(&cfg.stock, "stock", 50, "initial product stock")
	fs.IntVar(&cfg.orders, "orders", 200, "number of concurrent orders, each adding one unit")
	fs.IntVar(&cfg.concurrency, "concurrency", 32, "number of concurrent workers")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-request timeout")
	fs.StringVar(&cfg.username, "user", "", "login username (empty skips login)")
	fs.StringVar(&cfg.password, "password", "", "login password")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	switch {
	case strings.TrimSpace(cfg.addr) == "":
		return cfg, errors.New("addr is required")
	case cfg.stock < 0:
		return cfg, errors.New("stock must be >= 0")
	case cfg.orders <= 0:
		return cfg, errors.New("orders must be > 0")
	case cfg.concurrency <= 0:
		return cfg, errors.New("concurrency must be > 0")
	case cfg.timeout <= 0:
		return cfg, errors.New("timeout must be > 0")
	}
	return cfg, nil
}

// run выполняет прогон и возвращает ошибку, если остаток был нарушен.
func run(ctx context.Context, cfg config) (report, error) {
	startedAt := time.Now()
	runID := uuid.NewString()
	col := newCollector()
	client := newAPIClient(cfg.addr, cfg.timeout, cfg.concurrency, col)

	result := report{RunID: runID, StartedAt: startedAt.UTC(), InitialStock: cfg.stock, Orders: cfg.orders}

	if cfg.username != "" {
		if err := client.login(ctx, cfg.username, cfg.password); err != nil {
			return result, fmt.Errorf("login: %w", err)
		}
	}

	product, err := client.createProduct(ctx, "Stockbench "+runID[:8], cfg.stock)
	if err != nil {
		return result, fmt.Errorf("create product: %w", err)
	}
	result.ProductID = product.ID

	var (
		added, rejected atomic.Int64
		unexpectedMu    sync.Mutex
		unexpected      []error
	)
	jobs := make(chan struct{}, cfg.concurrency)
	var wg sync.WaitGroup
	for i := 0; i < cfg.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				err := buyOne(ctx, client, product.ID)
				var apiErr *apiError
				switch {
				case err == nil:
					added.Add(1)
				case errors.As(err, &apiErr) && apiErr.Message == insufficientStockMessage:
					rejected.Add(1)
				default:
					unexpectedMu.Lock()
					unexpected = append(unexpected, err)
					unexpectedMu.Unlock()
				}
			}
		}()
	}
	for i := 0; i < cfg.orders; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()

	result.Added, result.Rejected = added.Load(), rejected.Load()

	final, err := client.getProduct(ctx, product.ID)
	if err != nil {
		return result, fmt.Errorf("read final stock: %w", err)
	}
	result.FinalStock = final.StockQuantity
	result.DurationSeconds = time.Since(startedAt).Seconds()
	result.Calls = col.snapshot()

	return result, verify(cfg, result, unexpected)
}

func buyOne(ctx context.Context, client *apiClient, productID int64) error {
	orderID, err := client.createOrder(ctx)
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return client.addItem(ctx, orderID, productID, 1)
}

// verify проверяет инварианты прогона: продано ровно min(stock, orders), все отказы — из-за остатка,
// итоговый остаток равен начальному минус продажи.
func verify(cfg config, result report, unexpected []error) error {
	var errs []error
	if len(unexpected) > 0 {
		errs = append(errs, fmt.Errorf("%d unexpected failures, first: %w", len(unexpected), unexpected[0]))
	}
	if want := int64(min(cfg.stock, cfg.orders)); result.Added != want {
		errs = append(errs, fmt.Errorf("added %d items, want %d", result.Added, want))
	}
	if want := int64(cfg.stock) - result.Added; int64(result.FinalStock) != want {
		errs = append(errs, fmt.Errorf("final stock %d, want %d", result.FinalStock, want))
	}
	return errors.Join(errs...)
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	result, runErr := run(context.Background(), cfg)
	printReport(os.Stdout, result)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if runErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "stock invariant violated: %v\n", runErr)
		os.Exit(1)
	}
}
