// Package domain models the weather and energy data behind the insights service.
//
// # Weather series
//
// Hourly ERA5 reanalysis samples come from the Open-Meteo archive API:
//
//	temperature_2m       °C at 2 m
//	precipitation        mm over the preceding hour
//	wind_speed_10m       m/s at 10 m (requested with wind_speed_unit=ms)
//	wind_gusts_10m       m/s at 10 m
//	wind_direction_10m   degrees, meteorological (direction the wind blows from)
//
// Timestamps are requested in the local timezone (Europe/Oslo by default) and
// normalized to UTC on parse.
//
// # Snow seasons
//
// A snow season runs from 1 July to 30 June. Season s covers
// [s-07-01T00:00:00Z, (s+1)-06-30T23:59:59Z] and is labelled "s-(s+1)".
// Samples in January 2021 therefore belong to season 2020 ("2020-2021").
//
// # Snow drift
//
// Wind-driven transport follows Tabler's formulation:
//
//	Qupot = Σ u^3.8 · dt / 233847                      potential transport (kg/m)
//	Qspot = 0.5 · T · Swe                              snowfall-limited transport
//	Srwe  = θ · Swe                                    relocated water equivalent
//	Qinf  = 0.5 · T · Srwe   if Qupot > Qspot          snowfall controlled
//	      = Qupot            otherwise                 wind controlled
//	Qt    = Qinf · (1 − 0.14^(F/T))                    mean annual transport
//
// Swe sums hourly precipitation while the 2 m temperature is below 1 °C.
// T is the maximum transport distance, F the fetch distance, θ the relocation
// coefficient. Defaults are T=3000 m, F=30000 m, θ=0.5.
//
// Directional transport splits Qupot into 16 compass sectors of 22.5°, sector 0
// centred on north and counting clockwise.
//
// # Energy records
//
// Elhub exports hourly production and consumption per price area and group.
// Upstream column names drift between exports ("pricearea", "ElSpotOmr",
// "price_area", ...), so raw messages are parsed leniently and normalized:
// price areas are upper-cased with whitespace removed ("NO 2" → "NO2").
//
// Record keys are deterministic SHA-256 hashes of dataset|area|group|start so
// replayed Kafka messages upsert onto the same row. See [RecordKey].
package domain
