package main

import "github.com/zxswv/npg/internal/model"

// campusRooms is the room list the timeline is drawn from.  A capacity of
// zero means the room has no fixed seating.
var campusRooms = []model.Room{
    {Number: "B101(L)", Name: "ホール", Capacity: 100},
    {Number: "B104①②③", Name: "REC室", Capacity: 20},
    {Number: "B112", Name: "レクチャー&スタジオ", Capacity: 24},
    {Number: "B113", Name: "トレーニングR", Capacity: 15},
    {Number: "901", Name: "レクチャー", Capacity: 24},
    {Number: "1001", Name: "レクチャー", Capacity: 36},
    {Number: "1002", Name: "CATIA", Capacity: 10},
    {Number: "1003", Name: "レクチャー", Capacity: 0},
    {Number: "1004", Name: "レクチャー", Capacity: 0},
    {Number: "1005", Name: "レクチャー", Capacity: 24},
    {Number: "1006", Name: "レクチャー", Capacity: 24},
    {Number: "1007", Name: "レクチャー", Capacity: 24},
    {Number: "1008", Name: "レクチャー", Capacity: 17},
    {Number: "1009", Name: "MAC", Capacity: 18},
    {Number: "1010", Name: "win", Capacity: 14},
    {Number: "1011", Name: "音響(防音)", Capacity: 20},
    {Number: "1012", Name: "win", Capacity: 18},
    {Number: "1013", Name: "win(CG)", Capacity: 19},
    {Number: "1014", Name: "win", Capacity: 17},
    {Number: "1101", Name: "レクチャー", Capacity: 40},
    {Number: "1102", Name: "レクチャー", Capacity: 40},
    {Number: "1103", Name: "レクチャー", Capacity: 20},
    {Number: "1104", Name: "レクチャー", Capacity: 21},
    {Number: "1105", Name: "レクチャー", Capacity: 12},
    {Number: "1106", Name: "メイク", Capacity: 10},
    {Number: "1107", Name: "メイク", Capacity: 10},
    {Number: "1108", Name: "デザイン工房", Capacity: 20},
    {Number: "1109", Name: "工作室", Capacity: 30},
    {Number: "1110", Name: "動画CR", Capacity: 20},
    {Number: "1111", Name: "レクチャー", Capacity: 24},
    {Number: "1112", Name: "レクチャー", Capacity: 30},
    {Number: "1113", Name: "レクチャー", Capacity: 24},
    {Number: "1201", Name: "スタジオ", Capacity: 40},
    {Number: "1202(L)", Name: "レクチャー", Capacity: 49},
    {Number: "1204(L)", Name: "e-Sports", Capacity: 10},
    {Number: "1206", Name: "スタジオ", Capacity: 30},
    {Number: "1207", Name: "スタジオ", Capacity: 30},
}
