package domain

import "time"

// SensorReading is one measurement frame pushed by the EnviroSense sensor stream.
type SensorReading struct {
	Temperature float64   `json:"temperature"` // Degrees Celsius
	Humidity    float64   `json:"humidity"`    // Relative humidity percentage
	Obstacle    bool      `json:"obstacle"`    // Whether the proximity sensor sees an obstacle
	Timestamp   time.Time `json:"timestamp"`   // When the reading was taken
}
