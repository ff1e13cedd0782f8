package types

// Client -> Server
// Join:
//   name: string
//   color: string (optional, "#rrggbb"; assigned when empty)
//
// AddBot: {}
// StartGame: {}
//
// Predict:
//   value: 1..6
//
// RollDice:
//   custom: boolean          // false: the server rolls
//   value: 1..6              // only read when custom
//   Snake immunity comes from ActivateShield; clients cannot send overrides.
//
// EndTurn: {}
// Teleport: {}
// ActivateShield: {}
// Pause: {}
// Resume: {}
// Reset: {}
// Leave: {}

// Server -> Client
// StateSnapshot:
//   version: number
//   state: {
//     status: "waiting" | "playing" | "finished"
//     players: Player[]        // id|name|color|position|is_bot|is_current_turn|...
//     current_player_index: number
//     current_player_id: string
//     winner_id: string
//     history: MoveEvent[]
//     has_bonus_roll: boolean
//     awaiting_end_turn: boolean
//     paused: boolean
//     animating: boolean
//     epoch: number
//     turn: number
//     board: { snakes: {head: tail}, ladders: {bottom: top} }
//   }
//   events: Event[]            // what produced this snapshot
//
// Frame (bot animation, not a state change):
//   frame: { player_id, kind: "dice" | "step", value }
//
// Prediction:
//   prediction: { from, to, roll, kind, collisions }
//
// Error (sent only to the client that caused it):
//   code: string               // e.g. "wrong_turn", "not_seated"
//   error: string
