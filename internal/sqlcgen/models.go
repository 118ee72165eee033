package sqlcgen

type Network struct {
	ASN  int64
	Name string
}

type ExchangePresence struct {
	IxID    int64
	IxName  string
	ASN     int64
	IPAddr4 *string
	IPAddr6 *string
}

type FacilityPresence struct {
	FacID   int64
	FacName string
	ASN     int64
}
