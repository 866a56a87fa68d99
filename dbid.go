package bonkbot

import (
	"fmt"
	"time"
)

// dbidAnchor pairs a database id with the day an account near that id
// is known to have been registered.
type dbidAnchor struct {
	id   int
	date string
}

// Registration ids grow monotonically, so a sighting table brackets any
// id between two known dates. Credits to https://shaunx777.github.io/dbid2date/.
var dbidAnchors = []dbidAnchor{
	{1000, "2015-12-14"},
	{50000, "2016-03-01"},
	{200000, "2016-08-10"},
	{500000, "2017-02-20"},
	{900000, "2017-09-05"},
	{1400000, "2018-04-18"},
	{2000000, "2018-12-02"},
	{2600000, "2019-07-21"},
	{3200000, "2020-01-30"},
	{4000000, "2020-06-15"},
	{4800000, "2020-11-28"},
	{5500000, "2021-05-09"},
	{6200000, "2021-11-17"},
	{6900000, "2022-06-03"},
	{7500000, "2022-12-12"},
	{8100000, "2023-07-24"},
}

const anchorDateLayout = "2006-01-02"

// DBIDToDate estimates an account's registration date from its database
// id by interpolating between the bracketing anchors. Ids outside the
// anchored range get a "Before"/"After" qualifier instead.
func DBIDToDate(dbid int) string {
	i := 0
	for i < len(dbidAnchors) && dbidAnchors[i].id < dbid {
		i++
	}

	if i == 0 {
		return fmt.Sprintf("Before %s", dbidAnchors[0].date)
	}
	if i == len(dbidAnchors) {
		return fmt.Sprintf("After %s", dbidAnchors[len(dbidAnchors)-1].date)
	}

	lo, hi := dbidAnchors[i-1], dbidAnchors[i]
	loTime, _ := time.Parse(anchorDateLayout, lo.date)
	hiTime, _ := time.Parse(anchorDateLayout, hi.date)

	frac := float64(dbid-lo.id) / float64(hi.id-lo.id)
	estimate := loTime.Add(time.Duration(frac * float64(hiTime.Sub(loTime))))

	return estimate.Format("2006-01-02 15:04:05")
}
