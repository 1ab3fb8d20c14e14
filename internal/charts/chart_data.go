package charts

import "time"

// Point is one x/y pair in a chart dataset. X is a Unix millisecond
// timestamp at local midnight of the bucket's first day.
type Point struct {
	X int64   `json:"x"`
	Y float64 `json:"y"`
}

// Dataset is a labelled time series for one grouping key.
type Dataset struct {
	Label string  `json:"label"`
	Data  []Point `json:"data"`
}

// Data is the chart payload consumed by the reporting endpoints.
type Data struct {
	Datasets []Dataset `json:"datasets"`
}

// DailyRow is one pre-aggregated (group, day) value as produced by the
// stats repository. Rows must arrive ordered by slug, then date.
type DailyRow struct {
	Slug string
	Name string
	Date time.Time
	Y    float64
}

// MonthlyRow is one pre-aggregated (group, month) value, ordered by slug,
// year, month.
type MonthlyRow struct {
	Slug  string
	Name  string
	Year  int
	Month time.Month
	Y     float64
}

// BuildDailySeries groups rows into one dataset per (slug, name) and fills
// every day in [start, end] with a zero point where no row exists. The
// result is dense and chartable without client-side gap handling.
func BuildDailySeries(rows []DailyRow, start, end time.Time, loc *time.Location) *Data {
	buckets := dayBuckets(start, end, loc)
	data := &Data{Datasets: []Dataset{}}

	forEachDailyGroup(rows, func(name string, group []DailyRow) {
		values := make(map[int64]float64, len(group))
		for _, row := range group {
			values[DayTimestampMS(row.Date, loc)] += row.Y
		}

		points := make([]Point, 0, len(buckets))
		for _, x := range buckets {
			points = append(points, Point{X: x, Y: values[x]})
		}
		data.Datasets = append(data.Datasets, Dataset{Label: name, Data: points})
	})

	return data
}

// BuildMonthlySeries is the month-granularity counterpart of
// BuildDailySeries.
func BuildMonthlySeries(rows []MonthlyRow, start, end time.Time, loc *time.Location) *Data {
	months := MonthOf(start.In(loc)).RangeUntil(MonthOf(end.In(loc)))
	data := &Data{Datasets: []Dataset{}}

	forEachMonthlyGroup(rows, func(name string, group []MonthlyRow) {
		values := make(map[int64]float64, len(group))
		for _, row := range group {
			values[Month{Year: row.Year, Month: row.Month}.TimestampMS(loc)] += row.Y
		}

		points := make([]Point, 0, len(months))
		for _, month := range months {
			x := month.TimestampMS(loc)
			points = append(points, Point{X: x, Y: values[x]})
		}
		data.Datasets = append(data.Datasets, Dataset{Label: name, Data: points})
	})

	return data
}

func dayBuckets(start, end time.Time, loc *time.Location) []int64 {
	startLocal := start.In(loc)
	first := time.Date(startLocal.Year(), startLocal.Month(), startLocal.Day(), 0, 0, 0, 0, loc)
	endMS := DayTimestampMS(end, loc)

	buckets := []int64{}
	for day := first; ; day = day.AddDate(0, 0, 1) {
		ms := day.UnixMilli()
		if ms > endMS {
			break
		}
		buckets = append(buckets, ms)
	}
	return buckets
}

// forEachDailyGroup walks consecutive runs of identical slugs, mirroring
// the sort order the repository queries emit.
func forEachDailyGroup(rows []DailyRow, fn func(name string, group []DailyRow)) {
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].Slug == rows[i].Slug {
			j++
		}
		fn(rows[i].Name, rows[i:j])
		i = j
	}
}

func forEachMonthlyGroup(rows []MonthlyRow, fn func(name string, group []MonthlyRow)) {
	for i := 0; i < len(rows); {
		j := i
		for j < len(rows) && rows[j].Slug == rows[i].Slug {
			j++
		}
		fn(rows[i].Name, rows[i:j])
		i = j
	}
}
