package tournament

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusOpen   = "Open Registration"
	StatusClosed = "Registration Closed"

	RegistrationPending    = "Pending"
	RegistrationRegistered = "Registered"
)

// Tournament is a competitive event players pay an entry fee to join.
type Tournament struct {
	ID                  int64
	Name                string
	Game                string
	PrizePool           string
	EntryFee            decimal.Decimal
	MaxParticipants     int
	CurrentParticipants int
	StartDate           time.Time
	EndDate             time.Time
	Status              string
	Organizer           string
	Format              string
	Thumbnail           string
	CreatedAt           time.Time
}

// Full reports whether every seat is taken.
func (t Tournament) Full() bool {
	return t.CurrentParticipants >= t.MaxParticipants
}

// Registration is a player's seat in a tournament.
type Registration struct {
	ID            int64
	UserID        string
	TournamentID  int64
	TransactionID string
	Status        string
	Placement     string
	Earnings      decimal.NullDecimal
	CreatedAt     time.Time
}

// Entry pairs a registration with its tournament.
type Entry struct {
	Registration Registration
	Tournament   Tournament
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

// SampleCatalog is the catalog served when no tournaments were provisioned.
func SampleCatalog() []Tournament {
	fee := decimal.RequireFromString
	return []Tournament{
		{Name: "Winter Championship 2024", Game: "League of Legends", PrizePool: "$50,000", EntryFee: fee("10"), MaxParticipants: 128, CurrentParticipants: 128,
			StartDate: day(2024, time.January, 20), EndDate: day(2024, time.January, 22), Status: StatusClosed, Organizer: "ESL Gaming", Format: "Single Elimination", Thumbnail: "/news_feed/leagueoflegends.jpg"},
		{Name: "FPS Masters Cup", Game: "Call of Duty", PrizePool: "$25,000", EntryFee: fee("5"), MaxParticipants: 128, CurrentParticipants: 64,
			StartDate: day(2024, time.January, 25), EndDate: day(2024, time.January, 27), Status: StatusOpen, Organizer: "GameBattles", Format: "Double Elimination", Thumbnail: "/news_feed/callofduty.jpg"},
		{Name: "Valorant Pro Series", Game: "Valorant", PrizePool: "$75,000", EntryFee: fee("15"), MaxParticipants: 64, CurrentParticipants: 32,
			StartDate: day(2024, time.February, 1), EndDate: day(2024, time.February, 3), Status: StatusOpen, Organizer: "Riot Games", Format: "Swiss System", Thumbnail: "/news_feed/fortnite.webp"},
		{Name: "Counter-Strike Global Championship", Game: "Counter-Strike", PrizePool: "$100,000", EntryFee: fee("20"), MaxParticipants: 64, CurrentParticipants: 28,
			StartDate: day(2024, time.February, 10), EndDate: day(2024, time.February, 12), Status: StatusOpen, Organizer: "ESL Gaming", Format: "Round Robin", Thumbnail: "/news_feed/ubgaming.webp"},
		{Name: "Fortnite Battle Royale Invitational", Game: "Fortnite", PrizePool: "$60,000", EntryFee: fee("12"), MaxParticipants: 100, CurrentParticipants: 45,
			StartDate: day(2024, time.February, 15), EndDate: day(2024, time.February, 17), Status: StatusOpen, Organizer: "Epic Games", Format: "Battle Royale", Thumbnail: "/news_feed/fortnite.webp"},
		{Name: "Apex Legends Showdown", Game: "Apex Legends", PrizePool: "$40,000", EntryFee: fee("8"), MaxParticipants: 80, CurrentParticipants: 52,
			StartDate: day(2024, time.February, 20), EndDate: day(2024, time.February, 22), Status: StatusOpen, Organizer: "EA Games", Format: "Squad Elimination", Thumbnail: "/news_feed/callofduty.jpg"},
		{Name: "Rocket League Championship", Game: "Rocket League", PrizePool: "$35,000", EntryFee: fee("7"), MaxParticipants: 64, CurrentParticipants: 38,
			StartDate: day(2024, time.February, 25), EndDate: day(2024, time.February, 27), Status: StatusOpen, Organizer: "Psyonix", Format: "3v3 Tournament", Thumbnail: "/news_feed/leagueoflegends.jpg"},
		{Name: "Dota 2 International Qualifiers", Game: "Dota 2", PrizePool: "$150,000", EntryFee: fee("25"), MaxParticipants: 32, CurrentParticipants: 18,
			StartDate: day(2024, time.March, 1), EndDate: day(2024, time.March, 5), Status: StatusOpen, Organizer: "Valve Corporation", Format: "Best of 3", Thumbnail: "/news_feed/leagueoflegends.jpg"},
		{Name: "Overwatch League Playoffs", Game: "Overwatch", PrizePool: "$80,000", EntryFee: fee("18"), MaxParticipants: 48, CurrentParticipants: 25,
			StartDate: day(2024, time.March, 10), EndDate: day(2024, time.March, 12), Status: StatusOpen, Organizer: "Blizzard Entertainment", Format: "6v6 Competition", Thumbnail: "/news_feed/callofduty.jpg"},
		{Name: "PUBG Mobile Championship", Game: "PUBG Mobile", PrizePool: "$45,000", EntryFee: fee("9"), MaxParticipants: 100, CurrentParticipants: 67,
			StartDate: day(2024, time.March, 15), EndDate: day(2024, time.March, 17), Status: StatusOpen, Organizer: "Krafton", Format: "Squad Battle Royale", Thumbnail: "/news_feed/fortnite.webp"},
	}
}
