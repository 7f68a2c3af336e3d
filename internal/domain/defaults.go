package domain

// PlaceholderDescription is used when a spoken transaction carried no
// recognisable description.
const PlaceholderDescription = "Doanh thu bán hàng"

// DefaultDocument returns the sample ledger shown on first run and after a
// reset. Sample transaction ids are fixed so the sample renders identically
// every time.
func DefaultDocument() LedgerDocument {
	return LedgerDocument{
		Info: TaxPayerInfo{
			Name:     "Nguyễn Văn A",
			Address:  "123 Đường Lê Lợi, Phường Bến Thành, Quận 1, TP. Hồ Chí Minh",
			TaxID:    "0312345678",
			Location: "Chợ Bến Thành, Quận 1",
			Period:   "Quý 3/2023",
		},
		Transactions: []Transaction{
			{ID: "sample-1", Date: "01/07/2023", Description: "Bán hàng tạp hóa", Amount: 1500000},
			{ID: "sample-2", Date: "02/07/2023", Description: "Bán nước giải khát", Amount: 750000},
		},
	}
}
