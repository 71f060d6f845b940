package vpktc

// Credentials identify the account a poll cycle logs in as.
type Credentials struct {
	// AccountId is the machine number (`csl`).
	AccountId string
	// Password is the machine password (`hsl`).
	Password string
	// Period is the year the readings are requested for (`rok`).
	Period string
}

// DatasetCode selects which category of sensor records to fetch.
type DatasetCode string

const (
	DatasetM DatasetCode = "M"
	DatasetK DatasetCode = "K"
)

const (
	MalformedIndex = "n/a"
	MalformedValue = "malformed"
)

// Record is one (index, value) reading.
type Record struct {
	Index string
	Value string
}

// Snapshot is the ordered set of records produced by one poll cycle.
type Snapshot []Record

// Values returns the record values in snapshot order.
func (s Snapshot) Values() []string {
	values := make([]string, len(s))
	for i, r := range s {
		values[i] = r.Value
	}
	return values
}
