// Package overload implements hysteretic load shedding.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// A Controller normalizes each load measurement by its overload threshold and
// sums the ratios into one stress level. At or above 1.0 it asks a reducer to
// shed load; at or below the recovery ratio it asks the reducer to recover.
// Between the two, and within the reducer's impact time after any action,
// nothing happens. Sampler and the probes in this package feed the controller
// periodically; LastNReducer sheds load by lowering the relay's last-N cap.
package overload
