// Command exctl is a thin TCP client for matchd: it places orders and
// prints execution/error reports as they arrive. Grounded on the
// teacher's cmd/client/client.go, updated for decimal-string wire
// payloads instead of float64/uint64 ones.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"vaultex/internal/common"
	"vaultex/internal/wire"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9101", "address of the matchd server")
	owner := flag.String("owner", "", "owner username (compulsory)")
	action := flag.String("action", "place", "action to perform: ['place', 'log']")

	base := flag.String("base", "BTC", "base asset symbol (max 4 chars)")
	quote := flag.String("quote", "USD", "quote asset symbol (max 4 chars)")
	sideStr := flag.String("side", "buy", "order side: 'buy' or 'sell'")
	typeStr := flag.String("type", "limit", "order type: 'limit' or 'market'")
	price := flag.String("price", "0", "limit price (ignored for market orders)")
	qtyStr := flag.String("qty", "1", "quantity, or a comma-separated list (e.g. 1,2,5)")
	quoteQty := flag.String("quote-qty", "0", "quote_order_qty for a market bid quoted in quote currency")

	flag.Parse()

	if *owner == "" {
		fmt.Println("Error: -owner is compulsory.")
		flag.Usage()
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to server at %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s as %q\n", *serverAddr, *owner)

	go readReports(conn)

	side := common.Bid
	if strings.ToLower(*sideStr) == "sell" {
		side = common.Ask
	}
	orderType := common.Limit
	if strings.ToLower(*typeStr) == "market" {
		orderType = common.Market
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			m := wire.NewOrderMessage{
				Base:          common.AssetId(*base),
				Quote:         common.AssetId(*quote),
				Side:          side,
				Type:          orderType,
				Price:         decimalOrZero(*price),
				Qty:           qty,
				QuoteOrderQty: decimalOrZero(*quoteQty),
				Username:      *owner,
			}
			if _, err := conn.Write(wire.EncodeNewOrder(m)); err != nil {
				log.Printf("failed placing order (qty %s): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s %s order: %s/%s qty=%s price=%s\n",
				strings.ToUpper(*sideStr), strings.ToUpper(*typeStr), *base, *quote, qty, m.Price)
			time.Sleep(5 * time.Millisecond)
		}

	case "log":
		buf := make([]byte, wire.BaseMessageHeaderLen)
		binary.BigEndian.PutUint16(buf[0:2], uint16(wire.LogBook))
		if _, err := conn.Write(buf); err != nil {
			log.Printf("failed sending log request: %v", err)
		} else {
			fmt.Println("-> sent log request")
		}

	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("\nlistening for reports... (press Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []decimal.Decimal {
	var result []decimal.Decimal
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if d, err := decimal.NewFromString(p); err == nil {
			result = append(result, d)
		} else {
			log.Printf("warning: invalid quantity %q, skipping", p)
		}
	}
	return result
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// readReports continuously reads and prints Report frames from the server.
// Report frames carry no 2-byte message-type header: each is an 11-byte
// fixed part holding the tail lengths, followed by those tails.
func readReports(conn net.Conn) {
	for {
		fixed := make([]byte, 11)
		if _, err := io.ReadFull(conn, fixed); err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		reportType := wire.ReportType(fixed[0])
		side := common.OrderSide(fixed[1])
		priceLen := int(binary.BigEndian.Uint16(fixed[2:4]))
		qtyLen := int(binary.BigEndian.Uint16(fixed[4:6]))
		idLen := int(fixed[6])
		errLen := int(binary.BigEndian.Uint16(fixed[7:9]))
		cpLen := int(binary.BigEndian.Uint16(fixed[9:11]))

		tail := make([]byte, priceLen+qtyLen+idLen+errLen+cpLen)
		if len(tail) > 0 {
			if _, err := io.ReadFull(conn, tail); err != nil {
				log.Printf("error reading report body: %v", err)
				return
			}
		}

		offset := 0
		priceStr := string(tail[offset : offset+priceLen])
		offset += priceLen
		qtyStr := string(tail[offset : offset+qtyLen])
		offset += qtyLen
		orderID := string(tail[offset : offset+idLen])
		offset += idLen
		errStr := string(tail[offset : offset+errLen])
		offset += errLen
		counterparty := string(tail[offset : offset+cpLen])

		if reportType == wire.ErrorReport {
			fmt.Printf("\n[SERVER ERROR] %s\n", errStr)
			continue
		}

		sideStr := "BID"
		if side == common.Ask {
			sideStr = "ASK"
		}
		fmt.Printf("\n[EXECUTION] %s | qty: %s | price: %s | vs: %s | order: %s\n",
			sideStr, qtyStr, priceStr, counterparty, orderID)
	}
}
