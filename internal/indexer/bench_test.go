package indexer

import (
	"strings"
	"testing"
)

func BenchmarkChunkerSplit(b *testing.B) {
	c, err := NewChunker(1200, 150)
	if err != nil {
		b.Fatal(err)
	}
	text := strings.Repeat("Курьер приезжает в течение двух часов после оформления заявки. "+
		"Оплатить доставку можно картой или наличными, по тарифу отправителя.\n\n", 80)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = c.Split(text)
	}
}
