package domain

var infoLabels = map[InfoField]string{
	InfoName:     "Hộ, cá nhân kinh doanh",
	InfoAddress:  "Địa chỉ",
	InfoTaxID:    "Mã số thuế",
	InfoLocation: "Địa điểm kinh doanh",
	InfoPeriod:   "Kỳ kê khai",
}

var transactionLabels = map[TransactionField]string{
	TxDate:        "Ngày tháng",
	TxDescription: "Giao dịch",
	TxAmount:      "Số tiền",
}

// InfoLabel is the display label of f as printed on the S1a-HKD form. It is
// also what the AI service is told the field is.
func InfoLabel(f InfoField) string {
	if l, ok := infoLabels[f]; ok {
		return l
	}
	return string(f)
}

// TransactionLabel is the column header of f.
func TransactionLabel(f TransactionField) string {
	if l, ok := transactionLabels[f]; ok {
		return l
	}
	return string(f)
}
