package main

import (
	"flag"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/vending-machine/internal/core/domain"
	"github.com/rl1809/vending-machine/internal/core/service"
	"github.com/rl1809/vending-machine/pkg/logger"
)

const (
	itemID       = "B1"
	initialStock = 20
	queueSize    = 100
)

var itemPrice = domain.MustParseMoney("2.00")

func main() {
	customers := flag.Int("customers", 50, "concurrent customers")
	flag.Parse()

	log := logger.Must(logger.New("warn"))
	defer log.Sync()

	inventory, err := domain.NewInventory(domain.Item{ID: itemID, Name: "Chips", Price: itemPrice, Stock: initialStock})
	if err != nil {
		log.Fatal("failed to build inventory", zap.Error(err))
	}

	vendingService := service.NewVendingService(inventory, domain.NewLedger(), queueSize, service.WithLogger(log))

	// Drain the settlement queue in background
	archiver := service.NewArchiver(nil, nil, log)
	drained := make(chan struct{})
	go func() {
		archiver.Run(0, vendingService.Settlements())
		close(drained)
	}()

	var inserted, refunded atomic.Int64
	var purchases, rejected atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *customers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if _, err := vendingService.InsertCoin(itemPrice); err == nil {
				inserted.Add(int64(itemPrice))
			}
			_, _ = vendingService.SelectItem(itemID)
			if _, err := vendingService.Purchase(); err == nil {
				purchases.Add(1)
			} else {
				rejected.Add(1)
			}
			if res, err := vendingService.Refund(); err == nil {
				refunded.Add(int64(res.Amount))
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	vendingService.Close()
	<-drained

	var spent domain.Money
	dispensed := 0
	for _, tx := range vendingService.History() {
		spent += tx.TotalPrice + tx.Change
		dispensed += len(tx.Items)
	}
	balance := vendingService.Status().Balance
	item, _ := vendingService.GetItem(itemID)

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Customers:        %d\n", *customers)
	fmt.Printf("Purchases:        %d\n", purchases.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Inserted:         %s\n", domain.Money(inserted.Load()).Dollars())
	fmt.Printf("Spent + Change:   %s\n", spent.Dollars())
	fmt.Printf("Refunded:         %s\n", domain.Money(refunded.Load()).Dollars())
	fmt.Printf("Left in Machine:  %s\n", balance.Dollars())
	fmt.Printf("Final Stock:      %d\n", item.Stock)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	failed := false
	if domain.Money(inserted.Load()) == spent+domain.Money(refunded.Load())+balance {
		fmt.Println("PASS: money conserved")
	} else {
		fmt.Println("FAIL: inserted money does not match spent, refunded and remaining balance")
		failed = true
	}

	if item.Stock >= 0 && item.Stock+dispensed == initialStock {
		fmt.Println("PASS: stock conserved")
	} else {
		fmt.Printf("FAIL: stock %d + dispensed %d != %d\n", item.Stock, dispensed, initialStock)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
}
